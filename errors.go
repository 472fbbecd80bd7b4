package multicache

import (
	"fmt"

	pr "github.com/unkn0wn-root/multicache/provider"
)

var (
	ErrConfig       = pr.ErrConfig
	ErrTypeMismatch = pr.ErrTypeMismatch
	// ErrValidatorTooLong rejects a write before any tier sees it.
	ErrValidatorTooLong = pr.ErrValidatorTooLong
)

type ConfigError = pr.ConfigError

// TierError wraps a backend fault with the tier and operation it came from.
// The fan-out that hit it was aborted; earlier tiers keep whatever they did.
type TierError struct {
	Tier string
	Op   string
	Err  error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("multicache: tier %q: %s: %v", e.Tier, e.Op, e.Err)
}

func (e *TierError) Unwrap() error { return e.Err }
