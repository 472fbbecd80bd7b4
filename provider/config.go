package provider

import (
	"time"

	"github.com/unkn0wn-root/multicache/codec"
)

// Config is the part of a tier's configuration shared by all backends.
// The orchestrator derives one per tier, replacing Timeout with the tier's
// computed budget.
type Config struct {
	Application string
	Name        string        // tier name; used by skip lists and logs
	Timeout     time.Duration // default entry lifetime
	Disabled    bool
	Codec       codec.Serializer // nil => codec.Default()
	Logger      Logger           // nil => NopLogger
	Clock       func() time.Time // nil => time.Now
}

func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return NewConfigError("timeout", "must be positive, got %s", c.Timeout)
	}
	return nil
}
