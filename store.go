package kvs

import "context"

// Backends are plain values. Each interface below is one optional capability;
// they use only standard library types, so implementations can satisfy them
// without importing this package. New probes a backend against these once.

// Getter reads the raw bytes stored under key.
type Getter interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Loader is the alternate read primitive, probed when Getter is absent.
type Loader interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
}

// Setter writes value under key, replacing any previous value.
type Setter interface {
	Set(ctx context.Context, key string, value []byte) error
}

// Putter is the alternate write primitive, probed when Setter is absent.
type Putter interface {
	Put(ctx context.Context, key string, value []byte) error
}

// Deleter removes key. Removing an absent key is not an error.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Remover is the alternate delete primitive, probed when Deleter is absent.
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// Haser reports whether key is present.
type Haser interface {
	Has(ctx context.Context, key string) (bool, error)
}

// Popper reads and removes key in one step.
type Popper interface {
	Pop(ctx context.Context, key string) ([]byte, bool, error)
}

// KeyRanger calls fn for each key until fn returns false.
type KeyRanger interface {
	RangeKeys(ctx context.Context, fn func(key string) bool) error
}

// Ranger calls fn for each entry until fn returns false.
// The value slice is only valid for the duration of the call.
type Ranger interface {
	Range(ctx context.Context, fn func(key string, value []byte) bool) error
}

// Clearer removes every entry.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Flusher removes every entry and reports how many were removed.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Syncer flushes pending writes to durable storage.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Optimizer reclaims space left behind by deletions.
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// Attributer exposes named backend-native properties.
type Attributer interface {
	Attr(name string) (any, bool)
}
