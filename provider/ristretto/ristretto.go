// Package ristretto is an in-process tier on top of dgraph-io/ristretto.
// Ristretto cannot enumerate its keys, so the tier keeps a region index next
// to it; entries the cache evicted on its own are dropped from the index the
// next time the region is scanned.
package ristretto

import (
	"context"
	"sync"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/multicache/internal/util"
	"github.com/unkn0wn-root/multicache/internal/wire"
	pr "github.com/unkn0wn-root/multicache/provider"
)

type Config struct {
	NumCounters int64 `yaml:"num_counters" validate:"gte=0"` // 0 => 1e5
	MaxCost     int64 `yaml:"max_cost" validate:"gte=0"`     // bytes; 0 => 64 MiB
	BufferItems int64 `yaml:"buffer_items" validate:"gte=0"` // 0 => 64
	Metrics     bool  `yaml:"metrics"`
}

type Provider struct {
	pr.Base
	c *rc.Cache

	mu    sync.Mutex
	index map[string]map[string]struct{} // region -> keys
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
	if cfg.NumCounters < 0 || cfg.MaxCost < 0 || cfg.BufferItems < 0 {
		return nil, pr.NewConfigError("ristretto", "sizes must not be negative")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: coalesce(cfg.NumCounters, 1e5),
		MaxCost:     coalesce(cfg.MaxCost, 64<<20),
		BufferItems: coalesce(cfg.BufferItems, 64),
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{Base: b, c: c, index: make(map[string]map[string]struct{})}, nil
}

func coalesce(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

// Metrics exposes ristretto's counters when Config.Metrics is set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

// load returns the live entry stored under k. Corrupt or expired values are
// deleted on the way.
func (p *Provider) load(k string) (wire.Entry, bool) {
	v, ok := p.c.Get(k)
	if !ok {
		return wire.Entry{}, false
	}
	raw, _ := v.([]byte)
	e, err := wire.Decode(raw)
	if err != nil {
		p.c.Del(k) // self-heal: drop unexpected entry shape
		p.Log().Debug("dropped corrupt entry", pr.Fields{"tier": p.Name(), "key": k})
		return wire.Entry{}, false
	}
	if e.Expired(p.Now()) {
		p.c.Del(k)
		return wire.Entry{}, false
	}
	return e, true
}

func (p *Provider) store(k string, e wire.Entry) (bool, error) {
	raw, err := wire.Encode(e)
	if err != nil {
		return false, err
	}
	ok := p.c.SetWithTTL(k, raw, int64(len(raw)), e.TTL(p.Now()))
	p.c.Wait()
	return ok, nil
}

func (p *Provider) Get(_ context.Context, key, region string) (any, bool, error) {
	if !p.Enabled() {
		return nil, false, nil
	}
	k := util.Combined(key, region)
	e, ok := p.load(k)
	if !ok {
		return nil, false, nil
	}
	if e.Sliding {
		e = e.Touch(p.Now())
		ok, err := p.store(k, e)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			p.Log().Debug("sliding refresh rejected by ristretto", pr.Fields{"tier": p.Name(), "key": key, "region": util.Region(region)})
		}
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
	e, ok := p.load(util.Combined(key, region))
	if !ok {
		return pr.Item{}, false, nil
	}
	it, err := p.Item(e)
	return it, err == nil, err
}

func (p *Provider) Exist(_ context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return false, nil
	}
	_, ok := p.load(util.Combined(key, region))
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
	region = util.Region(region)

	p.mu.Lock()
	defer p.mu.Unlock()
	ok, err := p.store(util.Combined(key, region), e)
	if err != nil {
		return false, err
	}
	if !ok {
		p.Log().Debug("set rejected by ristretto", pr.Fields{"tier": p.Name(), "key": key, "region": region})
		return false, nil
	}
	keys := p.index[region]
	if keys == nil {
		keys = make(map[string]struct{})
		p.index[region] = keys
	}
	keys[key] = struct{}{}
	return true, nil
}

func (p *Provider) Remove(_ context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	region = util.Region(region)
	p.mu.Lock()
	p.c.Del(util.Combined(key, region))
	p.c.Wait()
	if keys := p.index[region]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(p.index, region)
		}
	}
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) RemoveAll(context.Context) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	p.mu.Lock()
	p.c.Clear()
	p.index = make(map[string]map[string]struct{})
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) RemoveRegion(_ context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	region = util.Region(region)
	p.mu.Lock()
	for key := range p.index[region] {
		p.c.Del(util.Combined(key, region))
	}
	p.c.Wait()
	delete(p.index, region)
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) RemoveExpired(_ context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	p.scan(util.Region(region))
	return true, nil
}

func (p *Provider) Count(_ context.Context, region string) (int64, error) {
	if !p.Enabled() {
		return 0, nil
	}
	return p.scan(util.Region(region)), nil
}

// scan walks the region index, forgets keys that are gone or expired, and
// returns the number of live entries.
func (p *Provider) scan(region string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := p.index[region]
	var live int64
	for key := range keys {
		if _, ok := p.load(util.Combined(key, region)); ok {
			live++
			continue
		}
		delete(keys, key)
	}
	if keys != nil && len(keys) == 0 {
		delete(p.index, region)
	}
	return live
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}
