package kvs

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Strategy describes how one abstract operation is dispatched to a backend.
type Strategy uint8

const (
	// Unsupported means calls fail with ErrUnsupported.
	Unsupported Strategy = iota
	// Native means the backend's preferred primitive is called directly.
	Native
	// Alternate means a secondary primitive is called (Load, Put, Remove, Flush, Range for keys).
	Alternate
	// Synthesized means the operation is composed from other primitives.
	Synthesized
	// NoOp means calls succeed without touching the backend.
	NoOp
)

func (s Strategy) String() string {
	switch s {
	case Native:
		return "native"
	case Alternate:
		return "alternate"
	case Synthesized:
		return "synthesized"
	case NoOp:
		return "noop"
	default:
		return "unsupported"
	}
}

// Capabilities is the dispatch strategy chosen for each operation.
// It is fixed when the Store is built.
type Capabilities struct {
	Has      Strategy
	Get      Strategy
	Set      Strategy
	Delete   Strategy
	Pop      Strategy
	Keys     Strategy
	Values   Strategy
	Items    Strategy
	Clear    Strategy
	Sync     Strategy
	Optimize Strategy
	Close    Strategy
}

// CanEnumerate reports whether Keys, Values and Items are available.
func (c Capabilities) CanEnumerate() bool {
	return c.Keys != Unsupported
}

func (c Capabilities) String() string {
	var b strings.Builder
	for i, f := range []struct {
		name string
		s    Strategy
	}{
		{"has", c.Has}, {"get", c.Get}, {"set", c.Set}, {"delete", c.Delete},
		{"pop", c.Pop}, {"keys", c.Keys}, {"values", c.Values}, {"items", c.Items},
		{"clear", c.Clear}, {"sync", c.Sync}, {"optimize", c.Optimize}, {"close", c.Close},
	} {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.name)
		b.WriteByte('=')
		b.WriteString(f.s.String())
	}
	return b.String()
}

// dispatch is the resolved call table. Optional entries that are nil are unsupported.
type dispatch struct {
	caps Capabilities

	get func(ctx context.Context, key string) ([]byte, bool, error)
	set func(ctx context.Context, key string, value []byte) error
	del func(ctx context.Context, key string) error
	has func(ctx context.Context, key string) (bool, error)
	pop func(ctx context.Context, key string) ([]byte, bool, error)

	keys  func(ctx context.Context, fn func(key string) bool) error
	items func(ctx context.Context, fn func(key string, value []byte) bool) error
	clear func(ctx context.Context) error

	sync     func(ctx context.Context) error
	optimize func(ctx context.Context) error
	close    func() error
	attr     func(name string) (any, bool)
}

// resolve probes b once for every capability, in priority order.
func resolve(b any) (*dispatch, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrConstruction)
	}

	d := &dispatch{}
	var missing []string

	if g, ok := b.(Getter); ok {
		d.get, d.caps.Get = g.Get, Native
	} else if l, ok := b.(Loader); ok {
		d.get, d.caps.Get = l.Load, Alternate
	} else {
		missing = append(missing, "read")
	}

	if s, ok := b.(Setter); ok {
		d.set, d.caps.Set = s.Set, Native
	} else if p, ok := b.(Putter); ok {
		d.set, d.caps.Set = p.Put, Alternate
	} else {
		missing = append(missing, "write")
	}

	if x, ok := b.(Deleter); ok {
		d.del, d.caps.Delete = x.Delete, Native
	} else if r, ok := b.(Remover); ok {
		d.del, d.caps.Delete = r.Remove, Alternate
	} else {
		missing = append(missing, "delete")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %T has no %s primitive", ErrConstruction, b, strings.Join(missing, ", "))
	}

	d.resolveLookups(b)
	d.resolveEnumeration(b)
	d.resolveClear(b)
	d.resolveLifecycle(b)
	return d, nil
}

func (d *dispatch) resolveLookups(b any) {
	if h, ok := b.(Haser); ok {
		d.has, d.caps.Has = h.Has, Native
	} else {
		get := d.get
		d.has = func(ctx context.Context, key string) (bool, error) {
			_, ok, err := get(ctx, key)
			return ok, err
		}
		d.caps.Has = Synthesized
	}

	if p, ok := b.(Popper); ok {
		d.pop, d.caps.Pop = p.Pop, Native
	} else {
		get, del := d.get, d.del
		d.pop = func(ctx context.Context, key string) ([]byte, bool, error) {
			v, ok, err := get(ctx, key)
			if err != nil || !ok {
				return nil, false, err
			}
			if err := del(ctx, key); err != nil {
				return nil, false, err
			}
			return v, true, nil
		}
		d.caps.Pop = Synthesized
	}
}

func (d *dispatch) resolveEnumeration(b any) {
	kr, hasKeys := b.(KeyRanger)
	r, hasRange := b.(Ranger)

	switch {
	case hasKeys:
		d.keys, d.caps.Keys = kr.RangeKeys, Native
	case hasRange:
		d.keys = func(ctx context.Context, fn func(string) bool) error {
			return r.Range(ctx, func(k string, _ []byte) bool { return fn(k) })
		}
		d.caps.Keys = Alternate
	}

	switch {
	case hasRange:
		d.items, d.caps.Items = r.Range, Native
	case hasKeys:
		// Keys are collected before reading so no backend lock is held across Get.
		get := d.get
		d.items = func(ctx context.Context, fn func(string, []byte) bool) error {
			keys, err := collectKeys(ctx, kr.RangeKeys)
			if err != nil {
				return err
			}
			for _, k := range keys {
				v, ok, err := get(ctx, k)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if !fn(k, v) {
					return nil
				}
			}
			return nil
		}
		d.caps.Items = Synthesized
	}
	d.caps.Values = d.caps.Items
}

func (d *dispatch) resolveClear(b any) {
	if c, ok := b.(Clearer); ok {
		d.clear, d.caps.Clear = c.Clear, Native
		return
	}
	if f, ok := b.(Flusher); ok {
		d.clear = func(ctx context.Context) error {
			_, err := f.Flush(ctx)
			return err
		}
		d.caps.Clear = Alternate
		return
	}
	if d.keys == nil {
		return
	}

	keys, del := d.keys, d.del
	d.clear = func(ctx context.Context) error {
		all, err := collectKeys(ctx, keys)
		if err != nil {
			return err
		}
		for _, k := range all {
			if err := del(ctx, k); err != nil {
				return err
			}
		}
		logger.Debug("cleared by deleting every key", "keys", len(all))
		return d.optimize(ctx)
	}
	d.caps.Clear = Synthesized
}

func (d *dispatch) resolveLifecycle(b any) {
	if s, ok := b.(Syncer); ok {
		d.sync, d.caps.Sync = s.Sync, Native
	} else {
		d.sync, d.caps.Sync = noop, NoOp
	}

	if o, ok := b.(Optimizer); ok {
		d.optimize, d.caps.Optimize = o.Optimize, Native
	} else {
		d.optimize, d.caps.Optimize = noop, NoOp
	}

	if c, ok := b.(io.Closer); ok {
		d.close, d.caps.Close = c.Close, Native
	} else {
		d.close, d.caps.Close = func() error { return nil }, NoOp
	}

	if a, ok := b.(Attributer); ok {
		d.attr = a.Attr
	} else {
		d.attr = func(string) (any, bool) { return nil, false }
	}
}

func noop(context.Context) error { return nil }

func collectKeys(ctx context.Context, rangeKeys func(context.Context, func(string) bool) error) ([]string, error) {
	var keys []string
	err := rangeKeys(ctx, func(k string) bool {
		keys = append(keys, k)
		return true
	})
	return keys, err
}
