// Package ristretto provides a TinyLFU-admission kvs backend.
//
// It offers no membership test and no enumeration. The kvs facade synthesizes Has
// and Pop from Get and Delete; Keys, Values and Items are unsupported.
package ristretto

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// ErrRejected is returned by Set when the cache drops a write.
var ErrRejected = errors.New("ristretto: write rejected")

// Store wraps a ristretto cache holding []byte values, each with cost 1.
type Store struct {
	c *ristretto.Cache
}

// New returns a Store admitting up to size entries.
func New(size int64) (*Store, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid size %d", size)
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto: %w", err)
	}
	return &Store{c: c}, nil
}

// Get returns the value for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("unexpected value type %T", v)
	}
	return b, true, nil
}

// Set stores a copy of value and waits until it is visible to Get.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if !s.c.Set(key, bytes.Clone(value), 1) {
		return ErrRejected
	}
	s.c.Wait()
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Del(key)
	return nil
}

// Clear drops every entry.
func (s *Store) Clear(context.Context) error {
	s.c.Clear()
	return nil
}

// Close stops the cache's background goroutines.
func (s *Store) Close() error {
	s.c.Close()
	return nil
}
