package multicache

// Hooks lightweight callbacks for high-signal orchestration events.
// Implementations MUST be cheap and non-blocking.
// Multi calls them on hot paths.
type Hooks interface {
	// A write skipped tier because it was named in Options.SkipProviders.
	TierSkipped(tier, storageKey string)

	// Tier returned ok=false on a write or removal (backpressure/eviction).
	TierRejected(tier, op, storageKey string)

	// Get missed because the master tier does not hold the key, whatever the
	// other tiers hold.
	GateMiss(master, storageKey string)

	// Tier failed; the rest of the fan-out was aborted.
	TierError(tier, op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) TierSkipped(string, string)          {}
func (NopHooks) TierRejected(string, string, string) {}
func (NopHooks) GateMiss(string, string)             {}
func (NopHooks) TierError(string, string, error)     {}
