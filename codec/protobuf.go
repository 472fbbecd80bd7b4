package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

// Protobuf stores generated protobuf messages. T is the pointer type
// (*mypb.User) and newMsg returns an empty instance to decode into.
type Protobuf[T proto.Message] struct {
	newMsg func() T
	opts   proto.MarshalOptions
}

func NewProtobuf[T proto.Message](newMsg func() T) Protobuf[T] {
	// deterministic so identical messages share identical cached bytes
	return Protobuf[T]{newMsg: newMsg, opts: proto.MarshalOptions{Deterministic: true}}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return c.opts.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.newMsg == nil {
		var zero T
		return zero, errors.New("codec: protobuf codec without constructor")
	}
	m := c.newMsg()
	if err := proto.Unmarshal(b, m); err != nil {
		return m, err
	}
	return m, nil
}
