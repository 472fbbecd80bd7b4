package codec

import (
	"bytes"
	"encoding/json"
	"errors"
)

// JSON encodes V with encoding/json. The zero value is ready to use.
// Decode rejects trailing data after the first JSON value.
type JSON[V any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if dec.More() {
		return v, errors.New("codec: trailing data after JSON value")
	}
	return v, nil
}
