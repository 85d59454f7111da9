package kvs

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/codeGROOVE-dev/kvs/pkg/store/lru"
	"github.com/codeGROOVE-dev/kvs/pkg/store/memory"
)

func TestCall(t *testing.T) {
	ctx := context.Background()
	st, err := New[int](memory.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w := Write("answer", 42)
	if !w.IsWrite() || w.Key() != "answer" {
		t.Fatalf("Write op = %+v", w)
	}
	v, ok, err := st.Call(ctx, w)
	if err != nil || ok || v != 0 {
		t.Errorf("Call(Write) = %v, %v, %v; want 0, false, nil", v, ok, err)
	}

	r := Read[int]("answer")
	if r.IsWrite() {
		t.Fatal("Read op reports write")
	}
	v, ok, err = st.Call(ctx, r)
	if err != nil || !ok || v != 42 {
		t.Errorf("Call(Read) = %v, %v, %v; want 42", v, ok, err)
	}

	v, ok, err = st.Call(ctx, Read[int]("missing"))
	if err != nil || ok || v != 0 {
		t.Errorf("Call(Read missing) = %v, %v, %v; want miss", v, ok, err)
	}
}

func TestAttr(t *testing.T) {
	ctx := context.Background()
	b, err := lru.New(10)
	if err != nil {
		t.Fatalf("lru.New: %v", err)
	}
	st, err := New[int](b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if v, ok := st.Native("size"); !ok || v.(int) != 10 {
		t.Errorf("Native(size) = %v, %v; want 10", v, ok)
	}
	if _, ok := st.Native("color"); ok {
		t.Error("Native(color) should be absent")
	}

	if err := st.SetAttr(ctx, "color", 3); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
	if v, ok, err := st.Attr(ctx, "color"); err != nil || !ok || v.(int) != 3 {
		t.Errorf("Attr(color) = %v, %v, %v; want 3", v, ok, err)
	}

	// A stored key named like a native property is shadowed by Attr but reachable by Get.
	if err := st.Set(ctx, "size", 99); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _, _ := st.Attr(ctx, "size"); v.(int) != 10 { //nolint:errcheck // native tier
		t.Errorf("Attr(size) = %v; want native 10", v)
	}
	if v, _, _ := st.Get(ctx, "size"); v != 99 { //nolint:errcheck // lru backend
		t.Errorf("Get(size) = %v; want 99", v)
	}

	if err := st.DelAttr(ctx, "color"); err != nil {
		t.Fatalf("DelAttr: %v", err)
	}
	if _, ok, err := st.Attr(ctx, "color"); err != nil || ok {
		t.Errorf("Attr after DelAttr = %v, %v", ok, err)
	}

	// Backends without attributes only have the key tier.
	plain, err := New[int](newBasic())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := plain.Native("len"); ok {
		t.Error("Native on a backend without attributes should be absent")
	}
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"user:1", "user:1"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{int8(-3), "-3"},
		{uint64(math.MaxUint64), "18446744073709551615"},
		{1.5, "1.5"},
		{float32(0.25), "0.25"},
		{complex(1, 2), "(1+2i)"},
		{true, "true"},
	}
	for _, tt := range tests {
		got, err := KeyOf(tt.in)
		if err != nil {
			t.Errorf("KeyOf(%v): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("KeyOf(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}

	for _, bad := range []any{nil, struct{}{}, []string{"a"}, map[string]int{}} {
		if _, err := KeyOf(bad); !errors.Is(err, ErrKeyType) {
			t.Errorf("KeyOf(%#v) = %v; want ErrKeyType", bad, err)
		}
	}
}

func TestWithMetrics(t *testing.T) {
	ctx := context.Background()
	set := metrics.NewSet()
	st, err := New[string](newBasic(), WithMetrics(set), WithName("plain"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := st.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for range 2 {
		if _, _, err := st.Get(ctx, "k"); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if _, err := st.Keys(ctx); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Keys = %v; want ErrUnsupported", err)
	}
	if err := st.Clear(ctx); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Clear = %v; want ErrUnsupported", err)
	}

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	out := buf.String()
	for _, want := range []string{
		`kvs_operations_total{store="plain",op="get"} 2`,
		`kvs_operations_total{store="plain",op="set"} 1`,
		`kvs_unsupported_total{store="plain",op="keys"} 1`,
		`kvs_unsupported_total{store="plain",op="clear"} 1`,
		`kvs_operations_total{store="plain",op="clear"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
