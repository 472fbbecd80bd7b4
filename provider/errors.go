package provider

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/multicache/internal/wire"
)

var (
	// ErrConfig is wrapped by every configuration error.
	ErrConfig = errors.New("multicache: invalid configuration")
	// ErrTypeMismatch is returned by GetAs when the stored value is not a T.
	ErrTypeMismatch = errors.New("multicache: type mismatch")
	// ErrValidatorTooLong is returned by writes whose validator exceeds
	// MaxValidatorLen bytes.
	ErrValidatorTooLong = wire.ErrValidatorTooLong
)

// MaxValidatorLen bounds Options.Validator.
const MaxValidatorLen = wire.MaxValidatorLen

// ConfigError reports a missing or invalid setting. It is only returned while
// building a provider; a provider that failed to build is never usable.
type ConfigError struct {
	Key    string
	Reason string
}

func NewConfigError(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "multicache: config: " + e.Reason
	}
	return fmt.Sprintf("multicache: config %q: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }
