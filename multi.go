package multicache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/multicache/internal/util"
	pr "github.com/unkn0wn-root/multicache/provider"
)

// Tier is one configured provider in the chain.
type Tier struct {
	Name     string        // as configured; addressed by SkipProviders
	Kind     string        // canonical registry name; empty for hand-built tiers
	Budget   time.Duration // default entry lifetime handed to the provider
	Provider pr.Provider
}

// Options tune a Multi built from explicit tiers. New derives them from Config.
type Options struct {
	Name     string // reported by Name(); "" => "multicache"
	Disabled bool
	Logger   Logger // if nil, NopLogger is used
	Hooks    Hooks  // if nil, NopHooks is used
	// NewValidator mints the token stored with writes that carry none.
	// nil => uuid.NewString.
	NewValidator func() string
}

// Multi fans writes out over ordered tiers and serves reads from the first
// tier holding a live value, provided the master (last) tier holds the key.
// Multi holds no locks; each tier is safe for concurrent use on its own.
type Multi struct {
	name         string
	enabled      bool
	tiers        []Tier
	log          Logger
	hooks        Hooks
	newValidator func() string
}

var (
	_ pr.Provider  = (*Multi)(nil)
	_ pr.Inspector = (*Multi)(nil)
)

// NewFromTiers wraps already-built tiers. Ownership of the providers passes to
// the returned Multi.
func NewFromTiers(tiers []Tier, opts Options) (*Multi, error) {
	if len(tiers) == 0 {
		return nil, pr.NewConfigError("providers", "at least one tier is required")
	}
	tiers = append([]Tier(nil), tiers...)
	seen := make(map[string]struct{}, len(tiers))
	for i, t := range tiers {
		if t.Provider == nil {
			return nil, pr.NewConfigError("providers", "tier %d (%s) has no provider", i, t.Name)
		}
		if t.Name == "" {
			tiers[i].Name = t.Provider.Name()
		}
		id := strings.ToLower(tiers[i].Name)
		if _, dup := seen[id]; dup {
			return nil, pr.NewConfigError("providers", "duplicate tier %q", tiers[i].Name)
		}
		seen[id] = struct{}{}
	}
	m := &Multi{
		name:         coalesce(opts.Name, "multicache"),
		enabled:      !opts.Disabled,
		tiers:        tiers,
		log:          coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:        coalesce[Hooks](opts.Hooks, NopHooks{}),
		newValidator: opts.NewValidator,
	}
	if m.newValidator == nil {
		m.newValidator = uuid.NewString
	}
	return m, nil
}

func (m *Multi) Name() string  { return m.name }
func (m *Multi) Enabled() bool { return m.enabled }

// Tiers returns the configured tiers in order.
func (m *Multi) Tiers() []Tier { return append([]Tier(nil), m.tiers...) }

// Master is the last tier; it gates Get.
func (m *Multi) Master() Tier { return m.tiers[len(m.tiers)-1] }

func (m *Multi) fail(t Tier, op string, err error) error {
	m.hooks.TierError(t.Name, op, err)
	m.log.Error("tier failed", Fields{"tier": t.Name, "op": op, "err": err})
	return &TierError{Tier: t.Name, Op: op, Err: err}
}

// skips reports whether opts exclude t. Entries match the configured name or,
// through the registry aliases, the tier kind.
func skips(opts pr.Options, t Tier) bool {
	if opts.Skips(t.Name) {
		return true
	}
	if t.Kind == "" {
		return false
	}
	for _, s := range opts.SkipProviders {
		if kind, ok := Canonical(s); ok && kind == t.Kind {
			return true
		}
	}
	return false
}

func (m *Multi) Get(ctx context.Context, key, region string) (any, bool, error) {
	if !m.enabled {
		return nil, false, nil
	}
	master := m.Master()
	ok, err := master.Provider.Exist(ctx, key, region)
	if err != nil {
		return nil, false, m.fail(master, "exist", err)
	}
	if !ok {
		m.hooks.GateMiss(master.Name, util.Combined(key, region))
		return nil, false, nil
	}
	for _, t := range m.tiers {
		v, ok, err := t.Provider.Get(ctx, key, region)
		if err != nil {
			return nil, false, m.fail(t, "get", err)
		}
		if ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Inspect reports the first live copy in tier order, gated like Get.
func (m *Multi) Inspect(ctx context.Context, key, region string) (pr.Item, bool, error) {
	if !m.enabled {
		return pr.Item{}, false, nil
	}
	master := m.Master()
	ok, err := master.Provider.Exist(ctx, key, region)
	if err != nil || !ok {
		if err != nil {
			err = m.fail(master, "exist", err)
		}
		return pr.Item{}, false, err
	}
	for _, t := range m.tiers {
		in, ok := t.Provider.(pr.Inspector)
		if !ok {
			continue
		}
		it, ok, err := in.Inspect(ctx, key, region)
		if err != nil {
			return pr.Item{}, false, m.fail(t, "inspect", err)
		}
		if ok {
			return it, true, nil
		}
	}
	return pr.Item{}, false, nil
}

func (m *Multi) Exist(ctx context.Context, key, region string) (bool, error) {
	if !m.enabled {
		return false, nil
	}
	for _, t := range m.tiers {
		ok, err := t.Provider.Exist(ctx, key, region)
		if err != nil {
			return false, m.fail(t, "exist", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *Multi) Add(ctx context.Context, key string, value any, region string, opts pr.Options) (bool, error) {
	return m.write("add", key, region, opts, func(p pr.Provider, o pr.Options) (bool, error) {
		return p.Add(ctx, key, value, region, o)
	})
}

func (m *Multi) AddPermanent(ctx context.Context, key string, value any, region string, opts pr.Options) (bool, error) {
	return m.write("add_permanent", key, region, opts, func(p pr.Provider, o pr.Options) (bool, error) {
		return p.AddPermanent(ctx, key, value, region, o)
	})
}

// write fans a write out to every tier not skipped by opts. All attempted
// tiers receive the same validator. Nothing is rolled back when a tier
// rejects or fails.
func (m *Multi) write(op, key, region string, opts pr.Options,
	put func(pr.Provider, pr.Options) (bool, error)) (bool, error) {
	if !m.enabled {
		return true, nil
	}
	if opts.Validator == "" {
		opts.Validator = m.newValidator()
	}
	// checked once here so no tier is written when the token cannot be stored
	if len(opts.Validator) > pr.MaxValidatorLen {
		return false, fmt.Errorf("%w: %d > %d bytes", ErrValidatorTooLong, len(opts.Validator), pr.MaxValidatorLen)
	}
	sk := util.Combined(key, region)
	master := m.Master()
	all := true
	for _, t := range m.tiers {
		if skips(opts, t) {
			m.hooks.TierSkipped(t.Name, sk)
			if t.Name == master.Name {
				m.log.Debug("master tier skipped; reads miss until it holds the key",
					Fields{"tier": t.Name, "key": key, "region": util.Region(region)})
			}
			continue
		}
		ok, err := put(t.Provider, opts)
		if err != nil {
			return false, m.fail(t, op, err)
		}
		if !ok {
			all = false
			m.hooks.TierRejected(t.Name, op, sk)
		}
	}
	return all, nil
}

func (m *Multi) Remove(ctx context.Context, key, region string) (bool, error) {
	return m.each("remove", util.Combined(key, region), func(p pr.Provider) (bool, error) {
		return p.Remove(ctx, key, region)
	})
}

func (m *Multi) RemoveAll(ctx context.Context) (bool, error) {
	return m.each("remove_all", "", func(p pr.Provider) (bool, error) {
		return p.RemoveAll(ctx)
	})
}

func (m *Multi) RemoveRegion(ctx context.Context, region string) (bool, error) {
	return m.each("remove_region", util.RegionPrefix(region), func(p pr.Provider) (bool, error) {
		return p.RemoveRegion(ctx, region)
	})
}

func (m *Multi) RemoveExpired(ctx context.Context, region string) (bool, error) {
	return m.each("remove_expired", util.RegionPrefix(region), func(p pr.Provider) (bool, error) {
		return p.RemoveExpired(ctx, region)
	})
}

// each runs fn on every tier and ANDs the results. Skip lists do not apply.
func (m *Multi) each(op, sk string, fn func(pr.Provider) (bool, error)) (bool, error) {
	if !m.enabled {
		return true, nil
	}
	all := true
	for _, t := range m.tiers {
		ok, err := fn(t.Provider)
		if err != nil {
			return false, m.fail(t, op, err)
		}
		if !ok {
			all = false
			m.hooks.TierRejected(t.Name, op, sk)
		}
	}
	return all, nil
}

// Count is the largest per-tier count; tiers are not expected to agree.
func (m *Multi) Count(ctx context.Context, region string) (int64, error) {
	if !m.enabled {
		return 0, nil
	}
	var most int64
	for _, t := range m.tiers {
		n, err := t.Provider.Count(ctx, region)
		if err != nil {
			return 0, m.fail(t, "count", err)
		}
		if n > most {
			most = n
		}
	}
	return most, nil
}

// Consistent reports whether every tier holding a live copy of key carries
// the same validator. Tiers without a copy, or that cannot be inspected, are
// ignored; a key held nowhere is trivially consistent.
func (m *Multi) Consistent(ctx context.Context, key, region string) (bool, error) {
	if !m.enabled {
		return true, nil
	}
	var (
		token string
		seen  bool
	)
	for _, t := range m.tiers {
		in, ok := t.Provider.(pr.Inspector)
		if !ok {
			continue
		}
		it, ok, err := in.Inspect(ctx, key, region)
		if err != nil {
			return false, m.fail(t, "inspect", err)
		}
		if !ok {
			continue
		}
		if seen && it.Validator != token {
			m.log.Debug("tiers disagree on validator", Fields{"tier": t.Name, "key": key, "region": util.Region(region)})
			return false, nil
		}
		token, seen = it.Validator, true
	}
	return true, nil
}

// Close closes every tier, even after a failure, and joins the errors.
func (m *Multi) Close(ctx context.Context) error {
	var errs []error
	for _, t := range m.tiers {
		if err := t.Provider.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// GetAs is the typed Get over any provider, Multi included.
func GetAs[T any](ctx context.Context, p pr.Provider, key, region string) (T, bool, error) {
	return pr.GetAs[T](ctx, p, key, region)
}
