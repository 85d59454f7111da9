// Package memory provides a transient in-memory backend for kvs.
package memory

import (
	"bytes"
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store is a concurrent map of keys to byte slices. Nothing outlives the process.
type Store struct {
	m *xsync.MapOf[string, []byte]
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{m: xsync.NewMapOf[string, []byte]()}
}

// Get returns the value stored under key.
// The returned slice is shared with the store and must not be modified.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.m.Load(key)
	return v, ok, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.m.Store(key, bytes.Clone(value))
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.m.Delete(key)
	return nil
}

// Has reports whether key is present.
func (s *Store) Has(_ context.Context, key string) (bool, error) {
	_, ok := s.m.Load(key)
	return ok, nil
}

// Pop removes key and returns its value atomically.
func (s *Store) Pop(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.m.LoadAndDelete(key)
	return v, ok, nil
}

// Range calls fn for each entry. Order is unspecified.
func (s *Store) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	var err error
	s.m.Range(func(k string, v []byte) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		return fn(k, v)
	})
	return err
}

// Clear removes every entry.
func (s *Store) Clear(context.Context) error {
	s.m.Clear()
	return nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return s.m.Size()
}

// Attr exposes "len".
func (s *Store) Attr(name string) (any, bool) {
	if name == "len" {
		return s.m.Size(), true
	}
	return nil, false
}
