package provider

import (
	"context"
	"fmt"
)

// GetAs is the typed Get. A stored value of another type yields
// ErrTypeMismatch; values are never converted.
func GetAs[T any](ctx context.Context, p Provider, key, region string) (T, bool, error) {
	var zero T
	v, ok, err := p.Get(ctx, key, region)
	if err != nil || !ok {
		return zero, false, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, false, fmt.Errorf("%w: %q in region %q holds %T, want %T", ErrTypeMismatch, key, region, v, zero)
	}
	return t, true, nil
}
