// Package kvs provides one get/set/delete/iterate/clear contract over heterogeneous
// key-value backends.
//
// A backend is any value implementing some subset of the capability interfaces in
// this package (Getter, Setter, Deleter, Ranger, Clearer, Syncer, ...). New probes it
// once and fixes a dispatch table; operations the backend lacks are synthesized from
// other primitives, become no-ops, or fail with ErrUnsupported.
//
// Values cross the boundary through a codec.Codec, so byte-only stores such as Valkey
// or bbolt interoperate with arbitrary Go values.
//
// Example:
//
//	st, err := kvs.Open[User]("users.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close(ctx)
//
//	_ = st.Set(ctx, "user:123", u)
//	u, ok, err := st.Get(ctx, "user:123")
package kvs

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/codeGROOVE-dev/kvs/internal/logging"
	"github.com/codeGROOVE-dev/kvs/pkg/codec"
	boltstore "github.com/codeGROOVE-dev/kvs/pkg/store/bolt"
	"github.com/codeGROOVE-dev/kvs/pkg/store/memory"
)

// Memory is the location that selects the transient in-memory backend in Open.
const Memory = ":memory:"

var logger = logging.For("kvs")

// Store is the facade over one backend.
// It adds no locking; concurrent use is as safe as the backend.
// After Close, behaviour of further calls is up to the backend.
type Store[V any] struct {
	backend any
	codec   codec.Codec[V]
	d       *dispatch
	metrics *opMetrics
}

// Entry is a decoded key-value pair yielded by Items.
type Entry[V any] struct {
	Key   string
	Value V
}

// New wraps an existing backend.
// It fails with ErrConstruction if the backend has no read, write or delete primitive,
// or if the configured codec does not handle V.
func New[V any](backend any, opts ...Option) (*Store[V], error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	c, err := codecFor[V](cfg)
	if err != nil {
		return nil, err
	}
	return build(backend, c, cfg)
}

// Open opens the store named by location.
// Memory (matched case-insensitively) selects a fresh in-memory map; any other location
// is the path of a bbolt database, opened with the options given via WithDiskOptions.
func Open[V any](location string, opts ...Option) (*Store[V], error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	c, err := codecFor[V](cfg)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(location, Memory) {
		return build(memory.New(), c, cfg)
	}

	db, err := boltstore.Open(location, cfg.disk...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}
	s, err := build(db, c, cfg)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return s, nil
}

func codecFor[V any](cfg *config) (codec.Codec[V], error) {
	if cfg.codec == nil {
		return codec.Default[V](), nil
	}
	c, ok := cfg.codec.(codec.Codec[V])
	if !ok {
		var zero V
		return nil, fmt.Errorf("%w: codec %T cannot encode %T", ErrConstruction, cfg.codec, zero)
	}
	return c, nil
}

func build[V any](backend any, c codec.Codec[V], cfg *config) (*Store[V], error) {
	d, err := resolve(backend)
	if err != nil {
		return nil, err
	}
	name := cfg.name
	if name == "" {
		name = fmt.Sprintf("%T", backend)
	}
	logger.Debug("resolved backend capabilities", "store", name, "capabilities", d.caps.String())

	return &Store[V]{
		backend: backend,
		codec:   c,
		d:       d,
		metrics: newOpMetrics(cfg.metrics, name),
	}, nil
}

// Backend returns the attached backend.
func (s *Store[V]) Backend() any {
	return s.backend
}

// Capabilities returns the dispatch strategy resolved for each operation.
func (s *Store[V]) Capabilities() Capabilities {
	return s.d.caps
}

// Has reports whether key is present. An absent key is not an error.
func (s *Store[V]) Has(ctx context.Context, key string) (bool, error) {
	s.metrics.call(opHas)
	return s.d.has(ctx, key)
}

// Get returns the decoded value for key.
// A missing key yields the zero value, false and a nil error.
func (s *Store[V]) Get(ctx context.Context, key string) (V, bool, error) {
	s.metrics.call(opGet)
	var zero V
	b, ok, err := s.d.get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := s.codec.Decode(b)
	if err != nil {
		return zero, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, true, nil
}

// Set encodes value and stores it under key, replacing any previous value.
func (s *Store[V]) Set(ctx context.Context, key string, value V) error {
	s.metrics.call(opSet)
	b, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.d.set(ctx, key, b)
}

// Put is an alias for Set.
func (s *Store[V]) Put(ctx context.Context, key string, value V) error {
	return s.Set(ctx, key, value)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store[V]) Delete(ctx context.Context, key string) error {
	s.metrics.call(opDelete)
	return s.d.del(ctx, key)
}

// Pop returns the decoded value for key and removes it.
// A missing key yields the zero value, false and a nil error.
func (s *Store[V]) Pop(ctx context.Context, key string) (V, bool, error) {
	s.metrics.call(opPop)
	var zero V
	b, ok, err := s.d.pop(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := s.codec.Decode(b)
	if err != nil {
		return zero, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, true, nil
}

// Keys returns a sequence over every stored key.
// It fails with ErrUnsupported if the backend cannot enumerate.
// Backend errors are yielded as the final element.
func (s *Store[V]) Keys(ctx context.Context) (iter.Seq2[string, error], error) {
	if s.d.keys == nil {
		s.metrics.refuse(opKeys)
		return nil, fmt.Errorf("keys: %w", ErrUnsupported)
	}
	s.metrics.call(opKeys)
	return func(yield func(string, error) bool) {
		stopped := false
		err := s.d.keys(ctx, func(k string) bool {
			if !yield(k, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield("", err)
		}
	}, nil
}

// Items returns a sequence over every decoded entry.
// It fails with ErrUnsupported if the backend cannot enumerate.
// A decode or backend error is yielded once and ends the sequence.
// Backends that enumerate inside a read transaction (bolt) deadlock if the loop
// body writes to the same store; collect first, then write.
func (s *Store[V]) Items(ctx context.Context) (iter.Seq2[Entry[V], error], error) {
	return s.entries(ctx, opItems)
}

// Values returns a sequence over every decoded value.
// It fails with ErrUnsupported if the backend cannot enumerate.
func (s *Store[V]) Values(ctx context.Context) (iter.Seq2[V, error], error) {
	items, err := s.entries(ctx, opValues)
	if err != nil {
		return nil, err
	}
	return func(yield func(V, error) bool) {
		for e, err := range items {
			if !yield(e.Value, err) {
				return
			}
		}
	}, nil
}

func (s *Store[V]) entries(ctx context.Context, o op) (iter.Seq2[Entry[V], error], error) {
	if s.d.items == nil {
		s.metrics.refuse(o)
		return nil, fmt.Errorf("%s: %w", o, ErrUnsupported)
	}
	s.metrics.call(o)
	return func(yield func(Entry[V], error) bool) {
		stopped := false
		err := s.d.items(ctx, func(k string, b []byte) bool {
			v, err := s.codec.Decode(b)
			if err != nil {
				stopped = true
				yield(Entry[V]{Key: k}, fmt.Errorf("decode %q: %w", k, err))
				return false
			}
			if !yield(Entry[V]{Key: k, Value: v}, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(Entry[V]{}, err)
		}
	}, nil
}

// Clear removes every entry using the backend's clear or flush primitive, or by
// deleting each enumerated key. It fails with ErrUnsupported if none is available.
func (s *Store[V]) Clear(ctx context.Context) error {
	if s.d.clear == nil {
		s.metrics.refuse(opClear)
		return fmt.Errorf("clear: %w", ErrUnsupported)
	}
	s.metrics.call(opClear)
	return s.d.clear(ctx)
}

// Sync flushes pending writes if the backend supports it; otherwise it does nothing.
func (s *Store[V]) Sync(ctx context.Context) error {
	s.metrics.call(opSync)
	return s.d.sync(ctx)
}

// Optimize compacts the backend if it supports it; otherwise it does nothing.
func (s *Store[V]) Optimize(ctx context.Context) error {
	s.metrics.call(opOptimize)
	return s.d.optimize(ctx)
}

// Close syncs and then closes the backend. Either step is skipped if unsupported.
// The backend is closed even when sync fails.
func (s *Store[V]) Close(ctx context.Context) error {
	s.metrics.call(opClose)
	serr := s.d.sync(ctx)
	cerr := s.d.close()
	switch {
	case serr == nil:
		return cerr
	case cerr == nil:
		return serr
	default:
		return errors.Join(serr, cerr)
	}
}
