// Package datastore provides a Google Cloud Datastore kvs backend.
package datastore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	ds "github.com/codeGROOVE-dev/ds9/pkg/datastore"
	"github.com/codeGROOVE-dev/kvs/pkg/store/compress"
)

const (
	datastoreKind      = "KVEntry"
	maxDatastoreKeyLen = 1500 // Datastore has stricter key length limits
)

// Store implements a kvs backend on Google Cloud Datastore.
// Each key is one entity of kind KVEntry; the entity name is the key plus the
// compressor's extension.
type Store struct {
	client     *ds.Client
	kind       string
	compressor compress.Compressor
	ext        string
}

// entry represents a stored value in Datastore.
// We use base64-encoded string for Value to avoid datastore []byte limitations.
// The key is stored in the Datastore entity key itself.
type entry struct {
	UpdatedAt time.Time `datastore:"updated_at"`
	Value     string    `datastore:"value,noindex"`
}

// New creates a Datastore-backed store.
// The database name selects the Datastore database.
// Optional compressor enables compression (default: no compression).
func New(ctx context.Context, database string, c ...compress.Compressor) (*Store, error) {
	client, err := ds.NewClientWithDatabase(ctx, "", database)
	if err != nil {
		return nil, fmt.Errorf("create datastore client: %w", err)
	}
	return NewWithClient(client, c...), nil
}

// NewWithClient wraps an existing client. The Store closes it in Close.
func NewWithClient(client *ds.Client, c ...compress.Compressor) *Store {
	comp := compress.None()
	if len(c) > 0 && c[0] != nil {
		comp = c[0]
	}
	return &Store{
		client:     client,
		kind:       datastoreKind,
		compressor: comp,
		ext:        comp.Extension(),
	}
}

// ValidateKey checks if a key is valid for Datastore.
func (*Store) ValidateKey(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if len(key) > maxDatastoreKeyLen {
		return fmt.Errorf("key too long: %d bytes (max %d for datastore)", len(key), maxDatastoreKeyLen)
	}
	return nil
}

// Location returns the Datastore key path for a key, e.g. "KVEntry/mykey".
func (s *Store) Location(key string) string {
	return s.kind + "/" + key + s.ext
}

func (s *Store) makeKey(key string) *ds.Key {
	return ds.NameKey(s.kind, key+s.ext, nil)
}

// Get retrieves a value from Datastore.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e entry
	if err := s.client.Get(ctx, s.makeKey(key), &e); err != nil {
		if errors.Is(err, ds.ErrNoSuchEntity) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("datastore get: %w", err)
	}

	b, err := base64.StdEncoding.DecodeString(e.Value)
	if err != nil {
		return nil, false, fmt.Errorf("decode base64: %w", err)
	}
	data, err := s.compressor.Decode(b)
	if err != nil {
		return nil, false, fmt.Errorf("decompress: %w", err)
	}
	return data, true, nil
}

// Set saves a value to Datastore.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.ValidateKey(key); err != nil {
		return err
	}
	data, err := s.compressor.Encode(value)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	e := entry{
		Value:     base64.StdEncoding.EncodeToString(data),
		UpdatedAt: time.Now(),
	}
	if _, err := s.client.Put(ctx, s.makeKey(key), &e); err != nil {
		return fmt.Errorf("datastore put: %w", err)
	}
	return nil
}

// Delete removes a value from Datastore.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Delete(ctx, s.makeKey(key)); err != nil {
		return fmt.Errorf("datastore delete: %w", err)
	}
	return nil
}

// RangeKeys calls fn for every stored key until fn returns false.
// Keys are fetched with a keys-only query before the first call.
func (s *Store) RangeKeys(ctx context.Context, fn func(key string) bool) error {
	keys, err := s.client.AllKeys(ctx, ds.NewQuery(s.kind).KeysOnly())
	if err != nil {
		return fmt.Errorf("query all keys: %w", err)
	}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, ok := strings.CutSuffix(k.Name, s.ext)
		if !ok {
			continue // written with another compressor
		}
		if !fn(name) {
			return nil
		}
	}
	return nil
}

// Flush removes all entries from Datastore.
// Returns the number of entries removed and any error.
func (s *Store) Flush(ctx context.Context) (int, error) {
	keys, err := s.client.AllKeys(ctx, ds.NewQuery(s.kind).KeysOnly())
	if err != nil {
		return 0, fmt.Errorf("query all keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.client.DeleteMulti(ctx, keys); err != nil {
		return 0, fmt.Errorf("delete all entries: %w", err)
	}
	return len(keys), nil
}

// Len returns the number of entries in Datastore.
func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, ds.NewQuery(s.kind))
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Close releases Datastore client resources.
func (s *Store) Close() error {
	return s.client.Close()
}
