package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type account struct {
	ID    string   `json:"id" msgpack:"id" cbor:"id"`
	Name  string   `json:"name" msgpack:"name" cbor:"name"`
	Roles []string `json:"roles" msgpack:"roles" cbor:"roles"`
}

func TestDefaultRegistryPreservesBuiltinTypes(t *testing.T) {
	r := Default()
	now := time.Unix(1_700_000_000, 123).UTC()

	cases := []any{
		"test",
		111,
		int64(-7),
		uint16(9),
		3.5,
		true,
		[]byte{1, 2, 3},
		[]string{"a", "b"},
		map[string]string{"k": "v"},
		now,
		2 * time.Second,
	}
	for _, in := range cases {
		b, err := r.Encode(in)
		require.NoError(t, err, "encode %T", in)
		out, err := r.Decode(b)
		require.NoError(t, err, "decode %T", in)
		assert.IsType(t, in, out)
		if tm, ok := in.(time.Time); ok {
			assert.True(t, tm.Equal(out.(time.Time)))
			continue
		}
		assert.Equal(t, in, out)
	}
}

func TestRegistryStructWithEachCodec(t *testing.T) {
	in := account{ID: "1", Name: "Ada", Roles: []string{"admin"}}

	for name, reg := range map[string]func(*Registry) error{
		"json":    func(r *Registry) error { return Register[account](r, "account", JSON[account]{}) },
		"msgpack": func(r *Registry) error { return Register[account](r, "account", Msgpack[account]{}) },
		"cbor":    func(r *Registry) error { return Register[account](r, "account", MustCBOR[account](CBOROptions{Canonical: true})) },
	} {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, reg(r))
			b, err := r.Encode(in)
			require.NoError(t, err)
			out, err := r.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestRegistryPointerAndValueAreDistinct(t *testing.T) {
	r := NewRegistry()
	MustRegister[account](r, "account", JSON[account]{})

	_, err := r.Encode(&account{ID: "1"})
	assert.True(t, errors.Is(err, ErrUnregistered))

	MustRegister[*account](r, "*account", JSON[*account]{})
	b, err := r.Encode(&account{ID: "1"})
	require.NoError(t, err)
	out, err := r.Decode(b)
	require.NoError(t, err)
	require.IsType(t, &account{}, out)
	assert.Equal(t, "1", out.(*account).ID)
}

func TestRegistryProtobuf(t *testing.T) {
	r := NewRegistry()
	MustRegister[*wrapperspb.StringValue](r, "pb.StringValue",
		NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }))

	b, err := r.Encode(wrapperspb.String("hello"))
	require.NoError(t, err)
	out, err := r.Decode(b)
	require.NoError(t, err)
	assert.True(t, proto.Equal(wrapperspb.String("hello"), out.(*wrapperspb.StringValue)))
}

func TestRegistryRejectsDuplicatesAndUnknown(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register[string](r, "string", String{}))
	assert.Error(t, Register[string](r, "str2", String{}), "same type twice")
	assert.Error(t, Register[int](r, "string", Msgpack[int]{}), "same name twice")
	assert.Error(t, Register[int](r, "", Msgpack[int]{}), "empty name")

	_, err := r.Encode(nil)
	assert.ErrorIs(t, err, ErrNilValue)

	other := NewRegistry()
	MustRegister[int](other, "int", Msgpack[int]{})
	b, err := other.Encode(5)
	require.NoError(t, err)
	_, err = r.Decode(b)
	assert.ErrorIs(t, err, ErrUnregistered)

	_, err = r.Decode([]byte{0xc1})
	assert.Error(t, err)
}

func TestRegistryLimitCodec(t *testing.T) {
	r := NewRegistry()
	MustRegister[string](r, "string", Limit[string](String{}, 4))

	b, err := r.Encode("tiny")
	require.NoError(t, err)
	_, err = r.Decode(b)
	require.NoError(t, err)

	b, err = r.Encode("too large")
	require.NoError(t, err)
	_, err = r.Decode(b)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, isInner := Limit[string](String{}, 0).(String)
	assert.True(t, isInner, "non-positive limit returns the inner codec")
}

func TestCBORCanonicalIsStable(t *testing.T) {
	c := MustCBOR[map[string]int](CBOROptions{Canonical: true})
	in := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := c.Encode(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Encode(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	out, err := c.Decode(first)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBytesDecodeCopies(t *testing.T) {
	src := []byte{1, 2, 3}
	out, err := Bytes{}.Decode(src)
	require.NoError(t, err)
	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestJSONRejectsTrailingData(t *testing.T) {
	_, err := JSON[account]{}.Decode([]byte(`{"id":"1"} {"id":"2"}`))
	assert.Error(t, err)

	out, err := JSON[account]{}.Decode([]byte(`{"id":"1"}` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, "1", out.ID)
}

func TestMsgpackCompactInts(t *testing.T) {
	small, err := Msgpack[int64]{}.Encode(5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05}, small, "positive fixint")

	out, err := Msgpack[int64]{}.Decode(small)
	require.NoError(t, err)
	assert.Equal(t, int64(5), out)
}
