// Package bigcache is an in-process tier on top of allegro/bigcache.
//
// BigCache has no per-entry TTL; its LifeWindow only bounds how long any
// entry may stay resident. Expiry is therefore carried in the entry itself
// and LifeWindow defaults to a horizon longer than any realistic lifetime.
// Combined keys do not identify their region unambiguously ("a" + "b_c" and
// "a_b" + "c" collide on prefix), so the tier indexes keys per region; keys
// BigCache evicted on its own leave the index on the next region scan.
package bigcache

import (
	"context"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/multicache/internal/util"
	"github.com/unkn0wn-root/multicache/internal/wire"
	pr "github.com/unkn0wn-root/multicache/provider"
)

const defaultLifeWindow = 10 * 365 * 24 * time.Hour

type Config struct {
	LifeWindow         time.Duration `yaml:"life_window"` // 0 => ten years
	CleanWindow        time.Duration `yaml:"clean_window"`
	Shards             int           `yaml:"shards"`
	MaxEntriesInWindow int           `yaml:"max_entries_in_window"`
	MaxEntrySize       int           `yaml:"max_entry_size"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb"` // ~ memory limit; 0 = unlimited
}

type Provider struct {
	pr.Base
	c *bc.BigCache

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
	life := cfg.LifeWindow
	if life == 0 {
		life = defaultLifeWindow
	}
	if life < 0 {
		return nil, pr.NewConfigError("bigcache.life_window", "must not be negative")
	}
	conf := bc.DefaultConfig(life)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{Base: b, c: c, index: make(map[string]map[string]struct{})}, nil
}

func (p *Provider) load(k string) (wire.Entry, bool, error) {
	raw, err := p.c.Get(k)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return wire.Entry{}, false, nil
	}
	if err != nil {
		return wire.Entry{}, false, err
	}
	return p.check(k, raw)
}

// check decodes raw and drops it from the cache when corrupt or expired.
func (p *Provider) check(k string, raw []byte) (wire.Entry, bool, error) {
	e, err := wire.Decode(raw)
	if err != nil {
		p.Log().Debug("dropped corrupt entry", pr.Fields{"tier": p.Name(), "key": k})
		return wire.Entry{}, false, p.del(k)
	}
	if e.Expired(p.Now()) {
		return wire.Entry{}, false, p.del(k)
	}
	return e, true, nil
}

func (p *Provider) del(k string) error {
	if err := p.c.Delete(k); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (p *Provider) Get(_ context.Context, key, region string) (any, bool, error) {
	if !p.Enabled() {
		return nil, false, nil
	}
	k := util.Combined(key, region)
	e, ok, err := p.load(k)
	if err != nil || !ok {
		return nil, false, err
	}
	if e.Sliding {
		e = e.Touch(p.Now())
		raw, err := wire.Encode(e)
		if err != nil {
			return nil, false, err
		}
		if err := p.c.Set(k, raw); err != nil {
			return nil, false, err
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
	e, ok, err := p.load(util.Combined(key, region))
	if err != nil || !ok {
		return pr.Item{}, false, err
	}
	it, err := p.Item(e)
	return it, err == nil, err
}

func (p *Provider) Exist(_ context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return false, nil
	}
	_, ok, err := p.load(util.Combined(key, region))
	return ok, err
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
	raw, err := wire.Encode(e)
	if err != nil {
		return false, err
	}
	region = util.Region(region)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.c.Set(util.Combined(key, region), raw); err != nil {
		return false, err
	}
	keys := p.index[region]
	if keys == nil {
		keys = make(map[string]struct{})
		p.index[region] = keys
	}
	keys[key] = struct{}{}
	return true, nil
}

// forget drops key from the region index. Callers hold p.mu.
func (p *Provider) forget(key, region string) {
	keys := p.index[region]
	delete(keys, key)
	if keys != nil && len(keys) == 0 {
		delete(p.index, region)
	}
}

func (p *Provider) Remove(_ context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	region = util.Region(region)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.del(util.Combined(key, region)); err != nil {
		return false, err
	}
	p.forget(key, region)
	return true, nil
}

func (p *Provider) RemoveAll(context.Context) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.c.Reset(); err != nil {
		return false, err
	}
	p.index = make(map[string]map[string]struct{})
	return true, nil
}

func (p *Provider) RemoveRegion(_ context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	region = util.Region(region)
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.index[region] {
		if err := p.del(util.Combined(key, region)); err != nil {
			return false, err
		}
		p.forget(key, region)
	}
	return true, nil
}

func (p *Provider) RemoveExpired(_ context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	if _, err := p.scan(util.Region(region)); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Count(_ context.Context, region string) (int64, error) {
	if !p.Enabled() {
		return 0, nil
	}
	return p.scan(util.Region(region))
}

// scan walks the region index, dropping expired entries and keys BigCache no
// longer holds, and returns the live count.
func (p *Provider) scan(region string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var live int64
	for key := range p.index[region] {
		_, ok, err := p.load(util.Combined(key, region))
		if err != nil {
			return live, err
		}
		if !ok {
			p.forget(key, region)
			continue
		}
		live++
	}
	return live, nil
}

// Stats exposes BigCache's hit/miss counters.
func (p *Provider) Stats() bc.Stats { return p.c.Stats() }

func (p *Provider) Close(context.Context) error {
	return p.c.Close()
}
