// Package otter provides a bounded S3-FIFO kvs backend built on otter.
//
// Reads go through Load rather than Get.
package otter

import (
	"bytes"
	"context"
	"fmt"

	"github.com/maypok86/otter/v2"
)

// Store wraps an otter cache of []byte values.
type Store struct {
	c *otter.Cache[string, []byte]
}

// New returns a Store holding at most size entries.
func New(size int) (*Store, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid size %d", size)
	}
	return &Store{c: otter.Must(&otter.Options[string, []byte]{MaximumSize: size})}, nil
}

// Load returns the value for key.
func (s *Store) Load(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.GetIfPresent(key)
	return v, ok, nil
}

// Set stores a copy of value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.c.Set(key, bytes.Clone(value))
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Invalidate(key)
	return nil
}

// Range calls fn for every entry until fn returns false. Order is unspecified.
func (s *Store) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	for k, v := range s.c.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

// Clear drops every entry.
func (s *Store) Clear(context.Context) error {
	s.c.InvalidateAll()
	return nil
}
