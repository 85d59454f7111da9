// Package codec converts application values to and from the bytes stored by kvs backends.
//
// Every codec must satisfy Decode(Encode(v)) == v for the values it is used with.
package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/kvs/pkg/store/compress"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec encodes and decodes values of type V.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// Default returns JSON wrapped in zlib compression.
func Default[V any]() Codec[V] {
	return Compressed(JSON[V](), compress.Zlib(-1))
}

// ByName builds a codec from a format ("json", "gob", "proto", "raw") and a compression
// name understood by compress.ByName. The proto format only serves V = any, and raw
// only V = []byte.
func ByName[V any](format, compression string, level int) (Codec[V], error) {
	var inner Codec[V]
	switch strings.ToLower(format) {
	case "", "json":
		inner = JSON[V]()
	case "gob":
		inner = Gob[V]()
	case "proto":
		c, ok := Proto().(Codec[V])
		if !ok {
			var zero V
			return nil, fmt.Errorf("proto codec needs value type any, got %T", zero)
		}
		inner = c
	case "raw":
		c, ok := Raw().(Codec[V])
		if !ok {
			var zero V
			return nil, fmt.Errorf("raw codec needs value type []byte, got %T", zero)
		}
		inner = c
	default:
		return nil, fmt.Errorf("unknown codec format %q", format)
	}

	comp, err := compress.ByName(compression, level)
	if err != nil {
		return nil, err
	}
	if comp.Extension() == "" {
		return inner, nil
	}
	return Compressed(inner, comp), nil
}

type jsonCodec[V any] struct{}

// JSON encodes values with encoding/json.
func JSON[V any]() Codec[V] { return jsonCodec[V]{} }

func (jsonCodec[V]) Encode(v V) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}

func (jsonCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

type gobCodec[V any] struct{}

// Gob encodes values with encoding/gob.
// Interface-typed values need their concrete types registered with gob.Register.
func Gob[V any]() Codec[V] { return gobCodec[V]{} }

func (gobCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, fmt.Errorf("gob decode: %w", err)
	}
	return v, nil
}

type protoCodec struct{}

// Proto encodes JSON-shaped dynamic values (nil, bool, numbers, strings,
// []any, map[string]any) as a protobuf structpb.Value.
// Numbers decode as float64, as with encoding/json.
func Proto() Codec[any] { return protoCodec{} }

func (protoCodec) Encode(v any) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("structpb value: %w", err)
	}
	b, err := proto.Marshal(pv)
	if err != nil {
		return nil, fmt.Errorf("proto marshal: %w", err)
	}
	return b, nil
}

func (protoCodec) Decode(data []byte) (any, error) {
	var pv structpb.Value
	if err := proto.Unmarshal(data, &pv); err != nil {
		return nil, fmt.Errorf("proto unmarshal: %w", err)
	}
	return pv.AsInterface(), nil
}

type rawCodec struct{}

// Raw passes byte slices through untouched. Decode returns a copy, since backends
// may hand out slices that are only valid during the call.
func Raw() Codec[[]byte] { return rawCodec{} }

func (rawCodec) Encode(v []byte) ([]byte, error)    { return v, nil }
func (rawCodec) Decode(data []byte) ([]byte, error) { return bytes.Clone(data), nil }

type compressed[V any] struct {
	inner Codec[V]
	comp  compress.Compressor
}

// Compressed applies c to the output of inner.
func Compressed[V any](inner Codec[V], c compress.Compressor) Codec[V] {
	return compressed[V]{inner: inner, comp: c}
}

func (c compressed[V]) Encode(v V) ([]byte, error) {
	b, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	out, err := c.comp.Encode(b)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return out, nil
}

func (c compressed[V]) Decode(data []byte) (V, error) {
	b, err := c.comp.Decode(data)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("decompress: %w", err)
	}
	return c.inner.Decode(b)
}
