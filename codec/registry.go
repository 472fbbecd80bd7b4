package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnregistered = errors.New("codec: unregistered type")
	ErrNilValue     = errors.New("codec: nil value")
)

type envelope struct {
	_msgpack struct{} `msgpack:",as_array"`
	Type     string
	Data     []byte
}

type registration struct {
	name string
	enc  func(any) ([]byte, error)
	dec  func([]byte) (any, error)
}

// Registry is a Serializer over a closed set of registered types.
// It is safe for concurrent use; registration is usually done once at startup.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*registration
	byType map[reflect.Type]*registration
}

var _ Serializer = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*registration),
		byType: make(map[reflect.Type]*registration),
	}
}

// Default returns a new Registry with Go builtins pre-registered.
func Default() *Registry {
	r := NewRegistry()
	MustRegister[string](r, "string", String{})
	MustRegister[[]byte](r, "[]byte", Bytes{})
	MustRegister[bool](r, "bool", Msgpack[bool]{})
	MustRegister[int](r, "int", Msgpack[int]{})
	MustRegister[int8](r, "int8", Msgpack[int8]{})
	MustRegister[int16](r, "int16", Msgpack[int16]{})
	MustRegister[int32](r, "int32", Msgpack[int32]{})
	MustRegister[int64](r, "int64", Msgpack[int64]{})
	MustRegister[uint](r, "uint", Msgpack[uint]{})
	MustRegister[uint8](r, "uint8", Msgpack[uint8]{})
	MustRegister[uint16](r, "uint16", Msgpack[uint16]{})
	MustRegister[uint32](r, "uint32", Msgpack[uint32]{})
	MustRegister[uint64](r, "uint64", Msgpack[uint64]{})
	MustRegister[float32](r, "float32", Msgpack[float32]{})
	MustRegister[float64](r, "float64", Msgpack[float64]{})
	MustRegister[time.Time](r, "time.Time", Msgpack[time.Time]{})
	MustRegister[time.Duration](r, "time.Duration", Msgpack[time.Duration]{})
	MustRegister[[]string](r, "[]string", Msgpack[[]string]{})
	MustRegister[[]any](r, "[]any", Msgpack[[]any]{})
	MustRegister[map[string]any](r, "map[string]any", Msgpack[map[string]any]{})
	MustRegister[map[string]string](r, "map[string]string", Msgpack[map[string]string]{})
	return r
}

// Register binds name and the static type V to c. Names and types must be unique.
func Register[V any](r *Registry, name string, c Codec[V]) error {
	if name == "" {
		return errors.New("codec: empty type name")
	}
	if c == nil {
		return fmt.Errorf("codec: nil codec for %q", name)
	}
	t := reflect.TypeOf((*V)(nil)).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("codec: type name %q already registered", name)
	}
	if prev, dup := r.byType[t]; dup {
		return fmt.Errorf("codec: type %s already registered as %q", t, prev.name)
	}
	reg := &registration{
		name: name,
		enc: func(v any) ([]byte, error) {
			return c.Encode(v.(V))
		},
		dec: func(b []byte) (any, error) {
			return c.Decode(b)
		},
	}
	r.byName[name] = reg
	r.byType[t] = reg
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister[V any](r *Registry, name string, c Codec[V]) {
	if err := Register[V](r, name, c); err != nil {
		panic(err)
	}
}

// Registered reports whether values of v's dynamic type can be encoded.
func (r *Registry) Registered(v any) bool {
	if v == nil {
		return false
	}
	r.mu.RLock()
	_, ok := r.byType[reflect.TypeOf(v)]
	r.mu.RUnlock()
	return ok
}

func (r *Registry) Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, ErrNilValue
	}
	t := reflect.TypeOf(v)
	r.mu.RLock()
	reg, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregistered, t)
	}
	data, err := reg.enc(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %s: %w", reg.name, err)
	}
	return msgpack.Marshal(&envelope{Type: reg.name, Data: data})
}

func (r *Registry) Decode(b []byte) (any, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("codec: envelope: %w", err)
	}
	r.mu.RLock()
	reg, ok := r.byName[env.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregistered, env.Type)
	}
	v, err := reg.dec(env.Data)
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", reg.name, err)
	}
	return v, nil
}
