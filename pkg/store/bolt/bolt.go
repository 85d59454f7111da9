// Package bolt provides a disk-backed kvs backend on bbolt (embedded B+ tree).
package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBucket holds every key unless WithBucket says otherwise.
const DefaultBucket = "kvs"

// Open flags, following dbm conventions.
const (
	FlagRead   = "r" // open existing database read-only
	FlagWrite  = "w" // open existing database read-write
	FlagCreate = "c" // open read-write, creating the file if needed
	FlagNew    = "n" // always start from an empty database
)

type options struct {
	flag    string
	bucket  string
	mode    os.FileMode
	timeout time.Duration
	noSync  bool
}

// Option configures Open.
type Option func(*options)

// WithFlag sets the open flag: FlagRead, FlagWrite, FlagCreate (default) or FlagNew.
func WithFlag(flag string) Option {
	return func(o *options) {
		o.flag = flag
	}
}

// WithBucket stores keys in the named bucket.
func WithBucket(name string) Option {
	return func(o *options) {
		o.bucket = name
	}
}

// WithMode sets the file mode used when creating the database file.
func WithMode(mode os.FileMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithTimeout bounds how long Open waits for the file lock. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithNoSync skips fsync after each commit. Sync must then be called explicitly.
func WithNoSync() Option {
	return func(o *options) {
		o.noSync = true
	}
}

// Store implements a kvs backend on one bbolt bucket.
// Optimize swaps the underlying handle and must not run concurrently with other calls.
type Store struct {
	db     *bolt.DB
	path   string
	bucket []byte
	opts   options
}

// Open opens or creates the bbolt database at path.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{flag: FlagCreate, bucket: DefaultBucket, mode: 0o600}
	for _, opt := range opts {
		opt(&o)
	}
	if path == "" {
		return nil, errors.New("path cannot be empty")
	}
	if o.bucket == "" {
		return nil, errors.New("bucket cannot be empty")
	}

	switch o.flag {
	case FlagRead, FlagWrite:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open bolt db: %w", err)
		}
	case FlagCreate:
	case FlagNew:
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("truncate bolt db: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid open flag %q", o.flag)
	}

	s := &Store{path: path, bucket: []byte(o.bucket), opts: o}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open() error {
	db, err := bolt.Open(s.path, s.opts.mode, &bolt.Options{
		Timeout:  s.opts.timeout,
		ReadOnly: s.opts.flag == FlagRead,
		NoSync:   s.opts.noSync,
	})
	if err != nil {
		return fmt.Errorf("opening bolt db: %w", err)
	}
	if !db.IsReadOnly() {
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(s.bucket)
			return err
		}); err != nil {
			return errors.Join(fmt.Errorf("creating bucket: %w", err), db.Close())
		}
	}
	s.db = db
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			val = make([]byte, len(v))
			copy(val, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return val, val != nil, nil
}

// Put stores value under key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		return b.Put([]byte(key), value)
	})
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Has reports whether key is present.
func (s *Store) Has(_ context.Context, key string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(s.bucket); b != nil {
			found = b.Get([]byte(key)) != nil
		}
		return nil
	})
	return found, err
}

// Range calls fn for each entry in key order inside one read transaction.
// The value slice is only valid during the call.
func (s *Store) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !fn(string(k), v) {
				return nil
			}
		}
		return nil
	})
}

// RangeKeys calls fn for each key in order.
func (s *Store) RangeKeys(ctx context.Context, fn func(key string) bool) error {
	return s.Range(ctx, func(k string, _ []byte) bool { return fn(k) })
}

// Clear drops and recreates the bucket.
func (s *Store) Clear(context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket) != nil {
			if err := tx.DeleteBucket(s.bucket); err != nil {
				return fmt.Errorf("deleting bucket: %w", err)
			}
		}
		if _, err := tx.CreateBucket(s.bucket); err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		return nil
	})
}

// Sync fsyncs the database file. Read-only stores have nothing to flush.
func (s *Store) Sync(context.Context) error {
	if s.db.IsReadOnly() {
		return nil
	}
	return s.db.Sync()
}

// Optimize rewrites the database into a fresh file, reclaiming pages freed by deletes.
// Read-only stores are left untouched.
func (s *Store) Optimize(context.Context) error {
	if s.db.IsReadOnly() {
		return nil
	}
	tmp := s.path + ".compact"
	// A target left by an interrupted run already holds buckets; Compact would fail on it.
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale compaction target: %w", err)
	}
	dst, err := bolt.Open(tmp, s.opts.mode, &bolt.Options{Timeout: s.opts.timeout})
	if err != nil {
		return fmt.Errorf("open compaction target: %w", err)
	}
	if err := bolt.Compact(dst, s.db, 0); err != nil {
		return errors.Join(fmt.Errorf("compact: %w", err), dst.Close(), os.Remove(tmp))
	}
	if err := dst.Close(); err != nil {
		return errors.Join(fmt.Errorf("close compaction target: %w", err), os.Remove(tmp))
	}
	if err := s.db.Close(); err != nil {
		return errors.Join(fmt.Errorf("close bolt db: %w", err), os.Remove(tmp))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Join(fmt.Errorf("rename compacted db: %w", err), s.open())
	}
	return s.open()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Attr exposes "path", "bucket", "readonly" and "stats" (a bbolt.Stats).
func (s *Store) Attr(name string) (any, bool) {
	switch name {
	case "path":
		return s.path, true
	case "bucket":
		return string(s.bucket), true
	case "readonly":
		return s.db.IsReadOnly(), true
	case "stats":
		return s.db.Stats(), true
	default:
		return nil, false
	}
}
