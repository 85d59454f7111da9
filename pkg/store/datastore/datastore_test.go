package datastore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	ds "github.com/codeGROOVE-dev/ds9/pkg/datastore"
	"github.com/codeGROOVE-dev/kvs/pkg/store/compress"
)

func newMockStore(t *testing.T, c ...compress.Compressor) *Store {
	t.Helper()
	client, cleanup := ds.NewMockClient(t)
	t.Cleanup(cleanup)
	return NewWithClient(client, c...)
}

func TestStore_SetGet(t *testing.T) {
	s := newMockStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "key1", []byte(`{"n":42}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("key1 not found")
	}
	if string(v) != `{"n":42}` {
		t.Errorf("Get = %q; want {\"n\":42}", v)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newMockStore(t)
	v, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != nil {
		t.Errorf("Get(missing) = %q, %v; want miss", v, ok)
	}
}

func TestStore_Update(t *testing.T) {
	s := newMockStore(t)
	ctx := context.Background()

	for _, v := range []string{"first", "second"} {
		if err := s.Set(ctx, "k", []byte(v)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	v, _, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "second" {
		t.Errorf("Get = %q; want second", v)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newMockStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Errorf("Get after Delete = %v, %v; want miss", ok, err)
	}
	if err := s.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(never-set): %v", err)
	}
}

func TestStore_Compression(t *testing.T) {
	s := newMockStore(t, compress.S2())
	ctx := context.Background()

	want := []byte(strings.Repeat("compressible ", 50))
	if err := s.Set(ctx, "k", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if string(got) != string(want) {
		t.Error("value changed through compression")
	}
	if loc := s.Location("k"); loc != "KVEntry/k.s" {
		t.Errorf("Location = %q; want KVEntry/k.s", loc)
	}
}

func TestStore_RangeKeys(t *testing.T) {
	s := newMockStore(t)
	ctx := context.Background()

	want := []string{"a", "b", "c"}
	for _, k := range want {
		if err := s.Set(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	var got []string
	if err := s.RangeKeys(ctx, func(k string) bool {
		got = append(got, k)
		return true
	}); err != nil {
		t.Fatalf("RangeKeys: %v", err)
	}
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Errorf("RangeKeys = %v; want %v", got, want)
	}

	n := 0
	if err := s.RangeKeys(ctx, func(string) bool {
		n++
		return false
	}); err != nil {
		t.Fatalf("RangeKeys: %v", err)
	}
	if n != 1 {
		t.Errorf("RangeKeys visited %d after stop; want 1", n)
	}
}

func TestStore_Flush(t *testing.T) {
	s := newMockStore(t)
	ctx := context.Background()

	for i := range 10 {
		if err := s.Set(ctx, fmt.Sprintf("key-%d", i), []byte("v")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	n, err := s.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n != 10 {
		t.Errorf("Flush deleted %d entries; want 10", n)
	}
	if _, ok, _ := s.Get(ctx, "key-0"); ok { //nolint:errcheck // presence is enough
		t.Error("key-0 survived Flush")
	}

	n, err = s.Flush(ctx)
	if err != nil || n != 0 {
		t.Errorf("Flush on empty = %d, %v; want 0, nil", n, err)
	}
}

func TestStore_ValidateKey(t *testing.T) {
	s := newMockStore(t)
	if err := s.ValidateKey(""); err == nil {
		t.Error("empty key should fail")
	}
	if err := s.ValidateKey(strings.Repeat("x", maxDatastoreKeyLen+1)); err == nil {
		t.Error("overlong key should fail")
	}
	if err := s.Set(context.Background(), "", []byte("v")); err == nil {
		t.Error("Set with empty key should fail")
	}
}
