// Package lru provides a size-bounded least-recently-used kvs backend.
//
// It removes entries with Remove rather than Delete, and enumerates keys only;
// the kvs facade reads values back one key at a time.
package lru

import (
	"bytes"
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is a bounded in-process LRU. Adding beyond the capacity evicts the least
// recently used entry.
type Store struct {
	c    *lru.Cache[string, []byte]
	size int
}

// New returns a Store holding at most size entries.
func New(size int) (*Store, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Store{c: c, size: size}, nil
}

// Get returns the value for key and marks it recently used.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	return v, ok, nil
}

// Set stores a copy of value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.c.Add(key, bytes.Clone(value))
	return nil
}

// Remove drops key.
func (s *Store) Remove(_ context.Context, key string) error {
	s.c.Remove(key)
	return nil
}

// Has reports whether key is present without touching its recency.
func (s *Store) Has(_ context.Context, key string) (bool, error) {
	return s.c.Contains(key), nil
}

// RangeKeys calls fn for each key from oldest to newest.
// The key list is snapshotted first; keys evicted meanwhile are still visited.
func (s *Store) RangeKeys(ctx context.Context, fn func(key string) bool) error {
	for _, k := range s.c.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(k) {
			return nil
		}
	}
	return nil
}

// Clear purges every entry.
func (s *Store) Clear(context.Context) error {
	s.c.Purge()
	return nil
}

// Attr exposes "len" and "size".
func (s *Store) Attr(name string) (any, bool) {
	switch name {
	case "len":
		return s.c.Len(), true
	case "size":
		return s.size, true
	default:
		return nil, false
	}
}
