package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by a size-limited codec when a stored payload is
// bigger than allowed. Shared tiers such as redis can hold values written by
// other processes; the limit keeps a single oversized entry from being
// decoded into memory.
var ErrTooLarge = errors.New("codec: payload too large")

type limited[V any] struct {
	inner Codec[V]
	max   int
}

// Limit wraps inner so Decode rejects payloads longer than max bytes with
// ErrTooLarge. Encode is not limited. max <= 0 returns inner itself.
func Limit[V any](inner Codec[V], max int) Codec[V] {
	if max <= 0 {
		return inner
	}
	return limited[V]{inner: inner, max: max}
}

func (l limited[V]) Encode(v V) ([]byte, error) { return l.inner.Encode(v) }

func (l limited[V]) Decode(b []byte) (V, error) {
	if len(b) > l.max {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(b), l.max)
	}
	return l.inner.Decode(b)
}
