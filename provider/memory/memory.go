// Package memory is the in-process tier. Entries live in a Store owned by the
// tier (or handed to it by the caller); nothing is shared through globals.
package memory

import (
	"context"
	"time"

	"github.com/unkn0wn-root/multicache/internal/util"
	pr "github.com/unkn0wn-root/multicache/provider"
)

type Config struct {
	// CleanupInterval for the janitor of a tier-owned Store; 0 => 1m, <0 disables.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// Store, when set, is used instead of a tier-owned one and is not closed
	// by the tier.
	Store *Store `yaml:"-" validate:"-"`
}

const defaultCleanup = time.Minute

type Provider struct {
	pr.Base
	store     *Store
	ownsStore bool
}

var (
	_ pr.Provider  = (*Provider)(nil)
	_ pr.Inspector = (*Provider)(nil)
)

func New(base pr.Config, cfg Config) (*Provider, error) {
	b, err := pr.NewBase(base)
	if err != nil {
		return nil, err
	}
	p := &Provider{Base: b, store: cfg.Store}
	if p.store == nil {
		interval := cfg.CleanupInterval
		if interval == 0 {
			interval = defaultCleanup
		}
		p.store = NewStore(interval, base.Clock)
		p.ownsStore = true
	}
	return p, nil
}

// Store exposes the backing table.
func (p *Provider) Store() *Store { return p.store }

func (p *Provider) Get(_ context.Context, key, region string) (any, bool, error) {
	if !p.Enabled() {
		return nil, false, nil
	}
	e, ok := p.store.Touch(util.Region(region), key)
	if !ok {
		return nil, false, nil
	}
	v, err := p.Value(e)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (p *Provider) Inspect(_ context.Context, key, region string) (pr.Item, bool, error) {
	if !p.Enabled() {
		return pr.Item{}, false, nil
	}
	e, ok := p.store.Peek(util.Region(region), key)
	if !ok {
		return pr.Item{}, false, nil
	}
	it, err := p.Item(e)
	if err != nil {
		return pr.Item{}, false, err
	}
	return it, true, nil
}

func (p *Provider) Exist(_ context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return false, nil
	}
	_, ok := p.store.Peek(util.Region(region), key)
	return ok, nil
}

func (p *Provider) Add(_ context.Context, key string, value any, region string, opts pr.Options) (bool, error) {
	return p.add(key, value, region, opts, false)
}

func (p *Provider) AddPermanent(_ context.Context, key string, value any, region string, opts pr.Options) (bool, error) {
	return p.add(key, value, region, opts, true)
}

func (p *Provider) add(key string, value any, region string, opts pr.Options, permanent bool) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	e, err := p.NewEntry(value, opts, permanent)
	if err != nil {
		return false, err
	}
	p.store.Set(util.Region(region), key, e)
	return true, nil
}

func (p *Provider) Remove(_ context.Context, key, region string) (bool, error) {
	if p.Enabled() {
		p.store.Delete(util.Region(region), key)
	}
	return true, nil
}

func (p *Provider) RemoveAll(context.Context) (bool, error) {
	if p.Enabled() {
		p.store.Clear()
	}
	return true, nil
}

func (p *Provider) RemoveRegion(_ context.Context, region string) (bool, error) {
	if p.Enabled() {
		p.store.ClearRegion(util.Region(region))
	}
	return true, nil
}

func (p *Provider) RemoveExpired(_ context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	if n := p.store.Purge(util.Region(region)); n > 0 {
		p.Log().Debug("purged expired entries", pr.Fields{"tier": p.Name(), "region": region, "removed": n})
	}
	return true, nil
}

func (p *Provider) Count(_ context.Context, region string) (int64, error) {
	if !p.Enabled() {
		return 0, nil
	}
	return p.store.Count(util.Region(region)), nil
}

func (p *Provider) Close(context.Context) error {
	if p.ownsStore {
		p.store.Close()
	}
	return nil
}
