package persist

import (
	"encoding/json"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Codec converts values to and from their stored text.
type Codec[T any] interface {
	Encode(v T) (string, error)
	Decode(text string) (T, error)
}

type funcCodec[T any] struct {
	encode func(T) (string, error)
	decode func(string) (T, error)
}

func (c funcCodec[T]) Encode(v T) (string, error)    { return c.encode(v) }
func (c funcCodec[T]) Decode(text string) (T, error) { return c.decode(text) }

// FuncCodec builds a codec from a serializer and a deserializer.
func FuncCodec[T any](encode func(T) (string, error), decode func(string) (T, error)) Codec[T] {
	return funcCodec[T]{encode: encode, decode: decode}
}

// JSON encodes values with encoding/json. It is the default codec.
func JSON[T any]() Codec[T] {
	return FuncCodec(
		func(v T) (string, error) {
			data, err := json.Marshal(v)
			return string(data), err
		},
		func(text string) (T, error) {
			var v T
			err := json.Unmarshal([]byte(text), &v)
			return v, err
		},
	)
}

// YAML encodes values as YAML documents.
func YAML[T any]() Codec[T] {
	return FuncCodec(
		func(v T) (string, error) {
			data, err := yaml.Marshal(v)
			return string(data), err
		},
		func(text string) (T, error) {
			var v T
			err := yaml.Unmarshal([]byte(text), &v)
			return v, err
		},
	)
}

// TOML encodes values as TOML documents. T must be a struct or a map.
func TOML[T any]() Codec[T] {
	return FuncCodec(
		func(v T) (string, error) {
			data, err := toml.Marshal(v)
			return string(data), err
		},
		func(text string) (T, error) {
			var v T
			err := toml.Unmarshal([]byte(text), &v)
			return v, err
		},
	)
}
