// Package valkey provides a Valkey/Redis kvs backend.
//
// Keys are namespaced by a prefix. The backend deliberately offers no enumeration:
// SCAN makes no snapshot guarantee and may repeat keys, so Keys/Values/Items on a
// kvs.Store over Valkey fail with kvs.ErrUnsupported. Flush still uses SCAN, where
// repeats are harmless.
package valkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

const maxKeyLength = 512 // Maximum key length for Valkey

// Store implements a kvs backend on Valkey/Redis.
type Store struct {
	client valkey.Client
	addr   string
	prefix string // Key prefix to namespace entries
}

// New connects to Valkey at addr ("host:port", default "localhost:6379") and
// namespaces keys with namespace + ":".
func New(ctx context.Context, namespace, addr string) (*Store, error) {
	if namespace == "" {
		return nil, errors.New("namespace cannot be empty")
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w", err)
	}

	return NewWithClient(client, namespace, addr), nil
}

// NewWithClient wraps an existing client. The Store takes ownership and closes it in Close.
func NewWithClient(client valkey.Client, namespace, addr string) *Store {
	return &Store{client: client, addr: addr, prefix: namespace + ":"}
}

// ValidateKey checks if a key is valid for Valkey.
func (*Store) ValidateKey(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key too long: %d bytes (max %d)", len(key), maxKeyLength)
	}
	return nil
}

// Location returns the Valkey key for a store key.
func (s *Store) Location(key string) string {
	return s.prefix + key
}

// Get retrieves a value from Valkey.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.Location(key)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}
	return data, true, nil
}

// Set saves a value to Valkey without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.ValidateKey(key); err != nil {
		return err
	}
	cmd := s.client.B().Set().Key(s.Location(key)).Value(valkey.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Delete removes a value from Valkey.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.Location(key)).Build()).Error(); err != nil {
		return fmt.Errorf("valkey delete: %w", err)
	}
	return nil
}

// Has reports whether key exists.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Exists().Key(s.Location(key)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey exists: %w", err)
	}
	return n > 0, nil
}

// Pop reads and deletes key atomically with GETDEL.
func (s *Store) Pop(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Do(ctx, s.client.B().Getdel().Key(s.Location(key)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey getdel: %w", err)
	}
	return data, true, nil
}

// Flush removes all entries with this store's prefix from Valkey.
// Returns the number of entries removed and any error.
func (s *Store) Flush(ctx context.Context) (int, error) {
	n := 0
	pat := s.prefix + "*"
	var cur uint64

	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		default:
		}

		scan, err := s.client.Do(ctx, s.client.B().Scan().Cursor(cur).Match(pat).Count(100).Build()).AsScanEntry()
		if err != nil {
			return n, fmt.Errorf("scan keys: %w", err)
		}

		if len(scan.Elements) > 0 {
			c, err := s.client.Do(ctx, s.client.B().Del().Key(scan.Elements...).Build()).AsInt64()
			if err != nil {
				return n, fmt.Errorf("delete keys: %w", err)
			}
			n += int(c)
		}

		cur = scan.Cursor
		if cur == 0 {
			break
		}
	}

	return n, nil
}

// Close releases Valkey client resources.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// Attr exposes "addr" and "prefix".
func (s *Store) Attr(name string) (any, bool) {
	switch name {
	case "addr":
		return s.addr, true
	case "prefix":
		return s.prefix, true
	default:
		return nil, false
	}
}
