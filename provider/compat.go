package provider

import "context"

// AddExpiring is the raw-minutes Add overload kept for older callers.
func AddExpiring(ctx context.Context, p Provider, key string, value any, region string, minutes int) (bool, error) {
	opts := DefaultOptions()
	opts.ExpirationMinutes = minutes
	return p.Add(ctx, key, value, region, opts)
}

// AddSliding is the allowSliding Add overload kept for older callers.
func AddSliding(ctx context.Context, p Provider, key string, value any, region string, sliding bool, minutes int) (bool, error) {
	opts := DefaultOptions()
	opts.Sliding = sliding
	opts.ExpirationMinutes = minutes
	return p.Add(ctx, key, value, region, opts)
}
