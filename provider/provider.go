// Package provider defines the capability contract shared by every cache tier
// and by the multi-tier orchestrator itself.
//
// Keys are addressed as (key, region). An empty region is normalized to the
// reserved default region before it reaches a backend. Every tier stores its
// own copy of an entry and expires it independently.
//
// Implementations must be safe for concurrent use. A miss is never an error:
// Get returns (nil, false, nil) for absent or expired entries. Errors are
// reserved for backend faults and decode failures the caller must see.
package provider

import (
	"context"
	"time"
)

// Provider is the operation set every tier implements.
type Provider interface {
	// Name is the configured tier name (or the orchestrator's name).
	Name() string
	// Enabled reports the bypass switch. A disabled provider reports success
	// for every mutation and a miss/false/0 for every read.
	Enabled() bool

	// Get returns the live value for (key, region). Sliding entries are
	// refreshed on a hit.
	Get(ctx context.Context, key, region string) (any, bool, error)
	// Exist reports whether a live entry exists. It never refreshes expiry.
	Exist(ctx context.Context, key, region string) (bool, error)

	// Add stores value, replacing any existing entry for (key, region).
	Add(ctx context.Context, key string, value any, region string, opts Options) (bool, error)
	// AddPermanent is Add with no automatic expiry.
	AddPermanent(ctx context.Context, key string, value any, region string, opts Options) (bool, error)

	// Remove deletes (key, region). Removing an absent key is not an error.
	Remove(ctx context.Context, key, region string) (bool, error)
	// RemoveAll deletes every entry in every region.
	RemoveAll(ctx context.Context) (bool, error)
	// RemoveRegion deletes every entry in region.
	RemoveRegion(ctx context.Context, region string) (bool, error)
	// RemoveExpired prunes expired entries in region.
	RemoveExpired(ctx context.Context, region string) (bool, error)

	// Count returns the number of live entries in region.
	Count(ctx context.Context, region string) (int64, error)

	// Close releases resources owned by the provider.
	Close(ctx context.Context) error
}

// Item is a live entry together with its metadata.
type Item struct {
	Value     any
	Validator string
	ExpiresAt time.Time // zero for permanent entries
	Sliding   bool
	Permanent bool
}

// Inspector is implemented by tiers that can expose entry metadata.
// Inspect has the same freshness semantics as Exist: it never refreshes
// sliding expiry.
type Inspector interface {
	Inspect(ctx context.Context, key, region string) (Item, bool, error)
}
