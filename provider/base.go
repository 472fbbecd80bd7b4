package provider

import (
	"fmt"
	"time"

	"github.com/unkn0wn-root/multicache/codec"
	"github.com/unkn0wn-root/multicache/internal/wire"
)

// Base holds what every tier shares: identity, bypass switch, default
// timeout, clock, serializer and logger. Tiers embed it.
type Base struct {
	name    string
	enabled bool
	timeout time.Duration
	codec   codec.Serializer
	log     Logger
	now     func() time.Time
}

func NewBase(cfg Config) (Base, error) {
	if err := cfg.Validate(); err != nil {
		return Base{}, err
	}
	b := Base{
		name:    cfg.Name,
		enabled: !cfg.Disabled,
		timeout: cfg.Timeout,
		codec:   cfg.Codec,
		log:     cfg.Logger,
		now:     cfg.Clock,
	}
	if b.codec == nil {
		b.codec = codec.Default()
	}
	if b.log == nil {
		b.log = NopLogger{}
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

func (b *Base) Name() string           { return b.name }
func (b *Base) Enabled() bool          { return b.enabled }
func (b *Base) Timeout() time.Duration { return b.timeout }
func (b *Base) Now() time.Time         { return b.now() }
func (b *Base) Log() Logger            { return b.log }

// NewEntry serializes value and stamps it with the expiry opts resolve to.
func (b *Base) NewEntry(value any, opts Options, permanent bool) (wire.Entry, error) {
	if err := wire.CheckValidator(opts.Validator); err != nil {
		return wire.Entry{}, fmt.Errorf("%s: %w", b.name, err)
	}
	payload, err := b.codec.Encode(value)
	if err != nil {
		return wire.Entry{}, fmt.Errorf("%s: encode: %w", b.name, err)
	}
	return wire.NewEntry(payload, opts.Validator, opts.TTL(b.timeout), opts.Sliding, permanent, b.now()), nil
}

// Value deserializes the payload of e.
func (b *Base) Value(e wire.Entry) (any, error) {
	v, err := b.codec.Decode(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", b.name, err)
	}
	return v, nil
}

// Item deserializes e together with its metadata.
func (b *Base) Item(e wire.Entry) (Item, error) {
	v, err := b.Value(e)
	if err != nil {
		return Item{}, err
	}
	return Item{
		Value:     v,
		Validator: e.Validator,
		ExpiresAt: e.ExpiresAt,
		Sliding:   e.Sliding,
		Permanent: e.Permanent,
	}, nil
}
