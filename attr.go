package kvs

import "context"

// Native returns a backend-native property such as a file path or capacity.
// It never consults stored keys.
func (s *Store[V]) Native(name string) (any, bool) {
	return s.d.attr(name)
}

// Attr resolves name in two tiers: backend-native properties first, then a key lookup.
// A stored key whose name equals a native property is shadowed here; use Get to reach it.
func (s *Store[V]) Attr(ctx context.Context, name string) (any, bool, error) {
	if v, ok := s.d.attr(name); ok {
		return v, true, nil
	}
	v, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

// SetAttr stores v under name. It is equivalent to Set.
func (s *Store[V]) SetAttr(ctx context.Context, name string, v V) error {
	return s.Set(ctx, name, v)
}

// DelAttr removes name. It is equivalent to Delete.
func (s *Store[V]) DelAttr(ctx context.Context, name string) error {
	return s.Delete(ctx, name)
}
