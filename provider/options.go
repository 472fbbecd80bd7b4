package provider

import (
	"strings"
	"time"
)

// DefaultExpirationMinutes is a sentinel: it means "use the tier's configured
// timeout", not "expire in 15 minutes".
const DefaultExpirationMinutes = 15

// Options carries per-call write intent.
type Options struct {
	// Sliding refreshes the expiry on every successful Get.
	Sliding bool
	// ExpirationMinutes overrides the tier timeout when positive and not
	// DefaultExpirationMinutes.
	ExpirationMinutes int
	// Validator is stored with the entry. The orchestrator assigns a fresh
	// token when empty.
	Validator string
	// SkipProviders names tiers that must not receive this write.
	SkipProviders []string
}

func DefaultOptions() Options {
	return Options{ExpirationMinutes: DefaultExpirationMinutes}
}

// TTL resolves the entry lifetime against a tier's default timeout.
func (o Options) TTL(tierDefault time.Duration) time.Duration {
	if o.ExpirationMinutes <= 0 || o.ExpirationMinutes == DefaultExpirationMinutes {
		return tierDefault
	}
	return time.Duration(o.ExpirationMinutes) * time.Minute
}

// Skips reports whether the named tier is excluded from this write.
func (o Options) Skips(tier string) bool {
	for _, s := range o.SkipProviders {
		if s = strings.TrimSpace(s); s != "" && strings.EqualFold(s, tier) {
			return true
		}
	}
	return false
}
