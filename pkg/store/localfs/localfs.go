// Package localfs provides a one-file-per-key kvs backend on the local filesystem.
package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/kvs/pkg/store/compress"
)

// entry is the on-disk envelope. The key is kept so entries can be enumerated.
type entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

const maxKeyLength = 127 // Maximum key length to avoid filesystem constraints

// Store keeps each entry in its own file under Dir, named by the SHA-256 of the key.
//
//nolint:govet // fieldalignment - current layout groups related fields logically (mutex with map it protects)
type Store struct {
	subdirsMu   sync.RWMutex
	Dir         string              // Exported for testing - directory path
	subdirsMade map[string]bool     // Cache of created subdirectories
	compressor  compress.Compressor // Compression algorithm
	ext         string              // File extension based on compressor
}

// New creates a file-based store.
// The namespace is used as a subdirectory name under dir, or under the OS cache
// directory when dir is empty.
// Optional compressor enables compression (default: none, plain JSON with .j extension).
func New(namespace, dir string, c ...compress.Compressor) (*Store, error) {
	if namespace == "" {
		return nil, errors.New("namespace cannot be empty")
	}
	if strings.Contains(namespace, "..") || strings.Contains(namespace, "/") || strings.Contains(namespace, "\\") {
		return nil, errors.New("invalid namespace: contains path separators or traversal sequences")
	}
	if strings.Contains(namespace, "\x00") {
		return nil, errors.New("invalid namespace: contains null byte")
	}

	comp := compress.None()
	if len(c) > 0 && c[0] != nil {
		comp = c[0]
	}

	var fullDir string
	if dir != "" {
		fullDir = filepath.Join(dir, namespace)
	} else {
		baseDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("get user cache dir: %w", err)
		}
		fullDir = filepath.Join(baseDir, namespace)
	}

	if err := os.MkdirAll(fullDir, 0o750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	testFile := filepath.Join(fullDir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("store dir not writable: %w", err)
	}
	_ = os.Remove(testFile) //nolint:errcheck // best-effort cleanup

	ext := comp.Extension()
	if ext == "" {
		ext = ".j"
	}

	return &Store{
		Dir:         fullDir,
		subdirsMade: make(map[string]bool),
		compressor:  comp,
		ext:         ext,
	}, nil
}

// ValidateKey checks if a key can be stored.
// Keys are hashed, so any characters are allowed; only length is limited.
func (*Store) ValidateKey(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key too long: %d bytes (max %d)", len(key), maxKeyLength)
	}
	return nil
}

// keyToFilename converts a key to a squid-style relative path: the first two hex
// characters of the hash name the subdirectory (e.g. "a3/a3f2....j").
func (s *Store) keyToFilename(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(h[:2], h+s.ext)
}

// Location returns the full file path where a key is stored.
func (s *Store) Location(key string) string {
	return filepath.Join(s.Dir, s.keyToFilename(key))
}

func (s *Store) decodeEntry(data []byte) (entry, error) {
	var e entry
	jsonData, err := s.compressor.Decode(data)
	if err != nil {
		return e, fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(jsonData, &e); err != nil {
		return e, fmt.Errorf("decode file: %w", err)
	}
	return e, nil
}

// Get retrieves the value stored under key.
// A corrupt file is removed and reported as an error.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	fn := s.Location(key)
	data, err := os.ReadFile(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	e, err := s.decodeEntry(data)
	if err != nil {
		rmErr := os.Remove(fn)
		return nil, false, errors.Join(err, rmErr)
	}
	return e.Value, true, nil
}

// Has reports whether a file exists for key.
func (s *Store) Has(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.Location(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat file: %w", err)
}

// Set writes value to key's file atomically.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.ValidateKey(key); err != nil {
		return err
	}
	fn := s.Location(key)
	dir := filepath.Dir(fn)

	// Check if subdirectory already created (cache to avoid syscalls)
	s.subdirsMu.RLock()
	exists := s.subdirsMade[dir]
	s.subdirsMu.RUnlock()

	if !exists {
		s.subdirsMu.Lock()
		if !s.subdirsMade[dir] {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				s.subdirsMu.Unlock()
				return fmt.Errorf("create subdirectory: %w", err)
			}
			s.subdirsMade[dir] = true
		}
		s.subdirsMu.Unlock()
	}

	jsonData, err := json.Marshal(entry{Key: key, Value: value, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	data, err := s.compressor.Encode(jsonData)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		rmErr := os.Remove(tmp)
		return errors.Join(fmt.Errorf("rename file: %w", err), rmErr)
	}
	return nil
}

// Delete removes key's file.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.Location(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// isStoreFile returns true if the file matches the store's file extension.
func (s *Store) isStoreFile(name string) bool {
	return filepath.Ext(name) == s.ext
}

// walk visits every store file until visit returns false or ctx is done.
// Per-file errors are collected rather than aborting the walk.
func (s *Store) walk(ctx context.Context, visit func(path string) (bool, error)) error {
	var errs []error
	walkErr := filepath.Walk(s.Dir, func(path string, fi os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("walk %s: %w", path, err))
			return nil
		}
		if fi.IsDir() || !s.isStoreFile(fi.Name()) {
			return nil
		}
		more, err := visit(path)
		if err != nil {
			errs = append(errs, err)
		}
		if !more {
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("walk directory: %w", walkErr))
	}
	return errors.Join(errs...)
}

// Range calls fn for every readable entry. Order is unspecified.
// Unreadable files are skipped and reported in the returned error.
func (s *Store) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	return s.walk(ctx, func(path string) (bool, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return true, fmt.Errorf("read %s: %w", path, err)
		}
		e, err := s.decodeEntry(data)
		if err != nil {
			return true, fmt.Errorf("%s: %w", path, err)
		}
		return fn(e.Key, e.Value), nil
	})
}

// Flush removes all entries and returns the number removed.
func (s *Store) Flush(ctx context.Context) (int, error) {
	n := 0
	err := s.walk(ctx, func(path string) (bool, error) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return true, fmt.Errorf("remove %s: %w", path, err)
		}
		n++
		return true, nil
	})

	s.subdirsMu.Lock()
	s.subdirsMade = make(map[string]bool)
	s.subdirsMu.Unlock()

	return n, err
}

// Len returns the number of entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.walk(ctx, func(string) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

// Close releases resources. File-based stores hold none.
func (*Store) Close() error {
	return nil
}

// Attr exposes "dir" and "ext".
func (s *Store) Attr(name string) (any, bool) {
	switch name {
	case "dir":
		return s.Dir, true
	case "ext":
		return s.ext, true
	default:
		return nil, false
	}
}
