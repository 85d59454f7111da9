package kvs

import "context"

// Op is a single read or write request for Store.Call.
type Op[V any] struct {
	key   string
	value V
	write bool
}

// Read returns an Op that looks up key.
func Read[V any](key string) Op[V] {
	return Op[V]{key: key}
}

// Write returns an Op that stores value under key.
func Write[V any](key string, value V) Op[V] {
	return Op[V]{key: key, value: value, write: true}
}

// Key returns the key the Op targets.
func (o Op[V]) Key() string { return o.key }

// IsWrite reports whether the Op stores a value.
func (o Op[V]) IsWrite() bool { return o.write }

// Call runs op: a Read behaves as Get, a Write as Set.
// A Write returns the zero value and false alongside Set's error.
func (s *Store[V]) Call(ctx context.Context, op Op[V]) (V, bool, error) {
	if op.write {
		var zero V
		return zero, false, s.Set(ctx, op.key, op.value)
	}
	return s.Get(ctx, op.key)
}
