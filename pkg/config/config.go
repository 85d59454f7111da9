// Package config builds a kvs.Store from a TOML file.
//
//	[store]
//	backend  = "bolt"
//	location = "/var/lib/app/data.db"
//	flag     = "c"
//
//	[codec]
//	format      = "json"
//	compression = "zstd"
//
//	[logging]
//	level = "debug"
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/codeGROOVE-dev/kvs"
	"github.com/codeGROOVE-dev/kvs/internal/logging"
	"github.com/codeGROOVE-dev/kvs/pkg/codec"
	boltstore "github.com/codeGROOVE-dev/kvs/pkg/store/bolt"
	"github.com/codeGROOVE-dev/kvs/pkg/store/cloudrun"
	"github.com/codeGROOVE-dev/kvs/pkg/store/compress"
	"github.com/codeGROOVE-dev/kvs/pkg/store/datastore"
	"github.com/codeGROOVE-dev/kvs/pkg/store/freecache"
	"github.com/codeGROOVE-dev/kvs/pkg/store/localfs"
	"github.com/codeGROOVE-dev/kvs/pkg/store/lru"
	"github.com/codeGROOVE-dev/kvs/pkg/store/otter"
	"github.com/codeGROOVE-dev/kvs/pkg/store/ristretto"
	"github.com/codeGROOVE-dev/kvs/pkg/store/valkey"
)

// Backend names accepted in store.backend.
const (
	BackendMemory    = "memory"
	BackendBolt      = "bolt"
	BackendLocalFS   = "localfs"
	BackendValkey    = "valkey"
	BackendDatastore = "datastore"
	BackendCloudRun  = "cloudrun"
	BackendLRU       = "lru"
	BackendRistretto = "ristretto"
	BackendFreecache = "freecache"
	BackendOtter     = "otter"
)

var backends = []string{
	BackendMemory, BackendBolt, BackendLocalFS, BackendValkey, BackendDatastore,
	BackendCloudRun, BackendLRU, BackendRistretto, BackendFreecache, BackendOtter,
}

type Config struct {
	Store   StoreConfig   `toml:"store"`
	Codec   CodecConfig   `toml:"codec"`
	Logging LoggingConfig `toml:"logging"`
}

type StoreConfig struct {
	Name      string `toml:"name"`
	Backend   string `toml:"backend"`
	Location  string `toml:"location"` // bolt: database path
	Flag      string `toml:"flag"`     // bolt: r, w, c or n
	Bucket    string `toml:"bucket"`   // bolt
	Mode      uint32 `toml:"mode"`     // bolt: file mode for new databases
	Timeout   string `toml:"timeout"`  // bolt: lock wait, e.g. "1s"
	NoSync    bool   `toml:"no_sync"`  // bolt
	Dir       string `toml:"dir"`      // localfs: parent directory, defaults to the OS cache dir
	Namespace string `toml:"namespace"`
	Addr      string `toml:"addr"` // valkey
	Size      int    `toml:"size"` // lru, ristretto, otter: entries; freecache: bytes
}

type CodecConfig struct {
	Format      string `toml:"format"`      // json, gob, proto or raw
	Compression string `toml:"compression"` // none, s2, zstd, zlib or lz4
	Level       int    `toml:"level"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

// Defaults returns a Config for a transient in-memory store with the default codec.
// Location is left empty: the memory backend needs none and bolt must name its file.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   BackendMemory,
			Flag:      boltstore.FlagCreate,
			Namespace: "kvs",
			Size:      10_000,
		},
		Codec: CodecConfig{
			Format:      "json",
			Compression: "zlib",
			Level:       -1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file over Defaults.
// If path is empty, only defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("parsing config: unknown key %q", undec[0].String())
	}
	cfg.Store.Dir = expandHome(cfg.Store.Dir)
	cfg.Store.Location = expandHome(cfg.Store.Location)
	return cfg, nil
}

// Validate checks field values without touching any backend.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	switch c.Store.Backend {
	case BackendBolt:
		switch {
		case c.Store.Location == "":
			errs = append(errs, errors.New("store.location: required for bolt"))
		case strings.EqualFold(c.Store.Location, kvs.Memory):
			errs = append(errs, fmt.Errorf("store.location: %q is not a file; use backend = %q", c.Store.Location, BackendMemory))
		}
		if !slices.Contains([]string{"", boltstore.FlagRead, boltstore.FlagWrite, boltstore.FlagCreate, boltstore.FlagNew}, c.Store.Flag) {
			errs = append(errs, fmt.Errorf("store.flag: invalid flag %q", c.Store.Flag))
		}
		if c.Store.Timeout != "" {
			if _, err := time.ParseDuration(c.Store.Timeout); err != nil {
				errs = append(errs, fmt.Errorf("store.timeout: %w", err))
			}
		}
	case BackendLocalFS, BackendValkey, BackendDatastore, BackendCloudRun:
		if c.Store.Namespace == "" {
			errs = append(errs, fmt.Errorf("store.namespace: required for %s", c.Store.Backend))
		}
	case BackendLRU, BackendRistretto, BackendFreecache, BackendOtter:
		if c.Store.Size <= 0 {
			errs = append(errs, fmt.Errorf("store.size: must be positive for %s", c.Store.Backend))
		}
	}
	if _, err := compress.ByName(c.Codec.Compression, c.Codec.Level); err != nil {
		errs = append(errs, fmt.Errorf("codec.compression: %w", err))
	}
	if !slices.Contains([]string{"", "json", "gob", "proto", "raw"}, c.Codec.Format) {
		errs = append(errs, fmt.Errorf("codec.format: unknown format %q", c.Codec.Format))
	}
	if f := c.Logging.Format; f != "" && f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", f))
	}
	return errors.Join(errs...)
}

// InitLogging installs the process-wide logger described by the logging section.
func (c *Config) InitLogging() {
	logging.Init(c.Logging.Level, c.Logging.Format)
}

// Open validates cfg, builds the configured backend and wraps it in a kvs.Store.
// opts are applied after the options derived from cfg, so they take precedence.
func Open[V any](ctx context.Context, cfg *Config, opts ...kvs.Option) (*kvs.Store[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", kvs.ErrConstruction, err)
	}
	c, err := codec.ByName[V](cfg.Codec.Format, cfg.Codec.Compression, cfg.Codec.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kvs.ErrConstruction, err)
	}
	name := cfg.Store.Name
	if name == "" {
		name = cfg.Store.Backend
	}
	opts = append([]kvs.Option{kvs.WithCodec(c), kvs.WithName(name)}, opts...)

	switch cfg.Store.Backend {
	case BackendMemory:
		return kvs.Open[V](kvs.Memory, opts...)
	case BackendBolt:
		return kvs.Open[V](cfg.Store.Location, append(opts, kvs.WithDiskOptions(diskOptions(cfg.Store)...))...)
	}

	b, err := newBackend(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", kvs.ErrConstruction, cfg.Store.Backend, err)
	}
	s, err := kvs.New[V](b, opts...)
	if err != nil {
		if cl, ok := b.(io.Closer); ok {
			err = errors.Join(err, cl.Close())
		}
		return nil, err
	}
	return s, nil
}

func diskOptions(sc StoreConfig) []boltstore.Option {
	var opts []boltstore.Option
	if sc.Flag != "" {
		opts = append(opts, boltstore.WithFlag(sc.Flag))
	}
	if sc.Bucket != "" {
		opts = append(opts, boltstore.WithBucket(sc.Bucket))
	}
	if sc.Mode != 0 {
		opts = append(opts, boltstore.WithMode(os.FileMode(sc.Mode)))
	}
	if sc.Timeout != "" {
		d, _ := time.ParseDuration(sc.Timeout) //nolint:errcheck // checked by Validate
		opts = append(opts, boltstore.WithTimeout(d))
	}
	if sc.NoSync {
		opts = append(opts, boltstore.WithNoSync())
	}
	return opts
}

func newBackend(ctx context.Context, sc StoreConfig) (any, error) {
	switch sc.Backend {
	case BackendLocalFS:
		return localfs.New(sc.Namespace, sc.Dir)
	case BackendValkey:
		return valkey.New(ctx, sc.Namespace, sc.Addr)
	case BackendDatastore:
		return datastore.New(ctx, sc.Namespace)
	case BackendCloudRun:
		return cloudrun.New(ctx, sc.Namespace)
	case BackendLRU:
		return lru.New(sc.Size)
	case BackendRistretto:
		return ristretto.New(int64(sc.Size))
	case BackendFreecache:
		return freecache.New(sc.Size), nil
	case BackendOtter:
		return otter.New(sc.Size)
	default:
		return nil, fmt.Errorf("unknown backend %q", sc.Backend)
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
