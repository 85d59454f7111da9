package localfs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/kvs/pkg/store/compress"
)

func newStore(t *testing.T, c ...compress.Compressor) *Store {
	t.Helper()
	s, err := New("test", t.TempDir(), c...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("Close error: %v", err)
		}
	})
	return s
}

func TestFileStore_SetGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "key1", []byte("42")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, found, err := s.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("key1 not found")
	}
	if string(val) != "42" {
		t.Errorf("Get value = %q; want 42", val)
	}

	if err := s.Set(ctx, "key1", []byte("43")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	val, _, _ = s.Get(ctx, "key1") //nolint:errcheck // checked above
	if string(val) != "43" {
		t.Errorf("Get after overwrite = %q; want 43", val)
	}
}

func TestFileStore_Missing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("missing key should not be found")
	}
	if ok, err := s.Has(ctx, "missing"); err != nil || ok {
		t.Errorf("Has(missing) = %v, %v", ok, err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "key1", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, _ := s.Has(ctx, "key1"); !ok { //nolint:errcheck // bool is enough here
		t.Fatal("Has(key1) = false after Set")
	}
	if err := s.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(s.Location("key1")); !os.IsNotExist(err) {
		t.Error("file should be removed")
	}
}

func TestFileStore_New_Errors(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		wantErr   bool
	}{
		{"empty namespace", "", true},
		{"path traversal ..", "../foo", true},
		{"path traversal with slash", "foo/bar", true},
		{"path traversal backslash", "foo\\bar", true},
		{"null byte", "foo\x00bar", true},
		{"valid alphanumeric", "myapp123", false},
		{"valid with dash", "my-app", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.namespace, t.TempDir())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileStore_ValidateKey(t *testing.T) {
	s := newStore(t)

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid short key", "key123", false},
		{"key at max length", strings.Repeat("a", 127), false},
		{"key too long", strings.Repeat("a", 128), true},
		{"key with slash", "key/123", false},
		{"key with unicode", "key-日本", false},
		{"empty key", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := s.Set(context.Background(), strings.Repeat("a", 128), []byte("x")); err == nil {
		t.Error("Set with overlong key should fail")
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "test", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	loc := s.Location("test")
	if err := os.WriteFile(loc, []byte("not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, found, err := s.Get(ctx, "test")
	if found {
		t.Error("corrupt entry should not be found")
	}
	if err == nil {
		t.Error("corrupt entry should report an error")
	}
	if _, err := os.Stat(loc); !os.IsNotExist(err) {
		t.Error("corrupt file should be removed")
	}
}

func TestFileStore_RangeAndLen(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, k, []byte("v-"+k)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	got := map[string]string{}
	if err := s.Range(ctx, func(k string, v []byte) bool {
		got[k] = string(v)
		return true
	}); err != nil {
		t.Fatalf("Range: %v", err)
	}
	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if strings.Join(keys, ",") != "a,b,c" || got["b"] != "v-b" {
		t.Errorf("Range = %v", got)
	}

	visited := 0
	if err := s.Range(ctx, func(string, []byte) bool { visited++; return false }); err != nil {
		t.Fatalf("Range with stop: %v", err)
	}
	if visited != 1 {
		t.Errorf("early stop visited %d; want 1", visited)
	}

	n, err := s.Len(ctx)
	if err != nil || n != 3 {
		t.Errorf("Len = %d, %v; want 3", n, err)
	}
}

func TestFileStore_Flush(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i := range 10 {
		if err := s.Set(ctx, strings.Repeat("k", i+1), []byte("v")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	deleted, err := s.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if deleted != 10 {
		t.Errorf("Flush deleted %d entries; want 10", deleted)
	}
	if n, _ := s.Len(ctx); n != 0 { //nolint:errcheck // count is enough
		t.Errorf("Len after Flush = %d", n)
	}

	// Subdirectories are recreated after Flush.
	if err := s.Set(ctx, "again", []byte("v")); err != nil {
		t.Fatalf("Set after Flush: %v", err)
	}
}

func TestFileStore_FlushCanceled(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	cancel()
	if _, err := s.Flush(ctx); err == nil {
		t.Error("Flush with canceled context should fail")
	}
}

func TestFileStore_Compression(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	large := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 1000))

	plain, err := New("none", dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := plain.Set(ctx, "key", large); err != nil {
		t.Fatalf("Set: %v", err)
	}
	plainStat, err := os.Stat(plain.Location("key"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if filepath.Ext(plain.Location("key")) != ".j" {
		t.Errorf("uncompressed extension = %q; want .j", filepath.Ext(plain.Location("key")))
	}

	for _, c := range []compress.Compressor{compress.S2(), compress.Zstd(3), compress.Zlib(-1), compress.LZ4()} {
		s, err := New("c"+strings.TrimPrefix(c.Extension(), "."), dir, c)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Set(ctx, "key", large); err != nil {
			t.Fatalf("Set: %v", err)
		}
		st, err := os.Stat(s.Location("key"))
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if st.Size() >= plainStat.Size() {
			t.Errorf("%s size %d should be less than uncompressed %d", c.Extension(), st.Size(), plainStat.Size())
		}
		val, found, err := s.Get(ctx, "key")
		if err != nil || !found || string(val) != string(large) {
			t.Errorf("%s: failed to read back value", c.Extension())
		}
	}
}

func TestFileStore_Attr(t *testing.T) {
	s := newStore(t, compress.S2())
	if d, ok := s.Attr("dir"); !ok || d.(string) != s.Dir {
		t.Errorf("Attr(dir) = %v, %v", d, ok)
	}
	if e, ok := s.Attr("ext"); !ok || e.(string) != ".s" {
		t.Errorf("Attr(ext) = %v, %v", e, ok)
	}
	if _, ok := s.Attr("bucket"); ok {
		t.Error("Attr(bucket) should be absent")
	}
}
