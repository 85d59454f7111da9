// Package freecache provides a fixed-memory kvs backend with near-zero GC overhead.
package freecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
)

const minSize = 512 * 1024

// Store wraps a freecache.Cache. Entries never expire but may be evicted once the
// memory budget is exhausted.
type Store struct {
	c *freecache.Cache
}

// New returns a Store with a memory budget of size bytes (at least 512 KiB).
func New(size int) *Store {
	return &Store{c: freecache.NewCache(max(size, minSize))}
}

// Get returns a copy of the value for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := s.c.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("freecache get: %w", err)
	}
	return v, true, nil
}

// Set stores value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.c.Set([]byte(key), value, 0); err != nil {
		return fmt.Errorf("freecache set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Del([]byte(key))
	return nil
}

// Range calls fn for every entry until fn returns false. Order is unspecified.
func (s *Store) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	it := s.c.NewIterator()
	for e := it.Next(); e != nil; e = it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(string(e.Key), e.Value) {
			return nil
		}
	}
	return nil
}

// Clear drops every entry.
func (s *Store) Clear(context.Context) error {
	s.c.Clear()
	return nil
}

// Attr exposes "len" and "evacuations".
func (s *Store) Attr(name string) (any, bool) {
	switch name {
	case "len":
		return s.c.EntryCount(), true
	case "evacuations":
		return s.c.EvacuateCount(), true
	default:
		return nil, false
	}
}
