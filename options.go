package kvs

import (
	"github.com/VictoriaMetrics/metrics"
	"github.com/codeGROOVE-dev/kvs/pkg/codec"
	boltstore "github.com/codeGROOVE-dev/kvs/pkg/store/bolt"
)

// config holds construction settings shared by New and Open.
type config struct {
	codec   any
	disk    []boltstore.Option
	metrics *metrics.Set
	name    string
}

// Option configures a Store.
type Option func(*config)

// WithCodec sets the value codec. The default is codec.Default: JSON plus zlib.
// The codec's value type must match the Store's, otherwise construction fails.
func WithCodec[V any](c codec.Codec[V]) Option {
	return func(cfg *config) {
		cfg.codec = c
	}
}

// WithDiskOptions forwards options to the disk-backed store opened by Open
// for a location other than Memory. Ignored by New.
func WithDiskOptions(opts ...boltstore.Option) Option {
	return func(cfg *config) {
		cfg.disk = append(cfg.disk, opts...)
	}
}

// WithMetrics counts dispatched and unsupported operations in set.
func WithMetrics(set *metrics.Set) Option {
	return func(cfg *config) {
		cfg.metrics = set
	}
}

// WithName labels the store in logs and metrics. Defaults to the backend's Go type.
func WithName(name string) Option {
	return func(cfg *config) {
		cfg.name = name
	}
}
