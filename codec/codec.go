// Package codec turns cached values into opaque bytes and back.
//
// Codec[V] handles one static type. Registry composes many of them into a
// Serializer for values of any registered dynamic type: each payload is
// wrapped in an envelope naming its type, so Decode returns the same Go type
// that was passed to Encode.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Serializer is the type-erased collaborator used by tiers.
// Decode(Encode(v)) must return a value of v's dynamic type.
type Serializer interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}
