// Package redis is a networked tier on top of go-redis.
//
// Layout under the configured env prefix:
//
//	<env>:e:<region>_<key>   entry frame, server TTL follows the entry expiry
//	<env>:r:<region>         set of keys written to region
//	<env>:regions            set of regions ever written
//
// The index sets may name keys the server already expired; scans prune them.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/multicache/internal/util"
	"github.com/unkn0wn-root/multicache/internal/wire"
	pr "github.com/unkn0wn-root/multicache/provider"
)

const DefaultPort = 6379

type Config struct {
	// Client, when set, is used as is; Host/Port/Password/DB are ignored.
	Client      goredis.UniversalClient `yaml:"-" validate:"-"`
	CloseClient bool                    `yaml:"-"` // set true only if this provider exclusively owns the client

	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"` // 0 => 6379
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	// Env namespaces every key this tier writes.
	Env string `yaml:"env"`
}

type Redis struct {
	pr.Base
	rdb         goredis.UniversalClient
	closeClient bool
	env         string
}

var (
	_ pr.Provider  = (*Redis)(nil)
	_ pr.Inspector = (*Redis)(nil)
)

// New connects (or adopts cfg.Client) and pings the server once.
func New(ctx context.Context, base pr.Config, cfg Config) (*Redis, error) {
	b, err := pr.NewBase(base)
	if err != nil {
		return nil, err
	}
	if cfg.Env == "" {
		return nil, pr.NewConfigError("env", "must be set for the redis tier")
	}
	rdb, owned := cfg.Client, cfg.CloseClient
	if rdb == nil {
		if cfg.Host == "" {
			return nil, pr.NewConfigError("host", "must be set for the redis tier")
		}
		port := cfg.Port
		if port == 0 {
			port = DefaultPort
		}
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		owned = true
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		if owned {
			_ = rdb.Close()
		}
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Redis{Base: b, rdb: rdb, closeClient: owned, env: cfg.Env}, nil
}

func (p *Redis) entryKey(key, region string) string {
	return p.env + ":e:" + util.Combined(key, region)
}

func (p *Redis) regionKey(region string) string {
	return p.env + ":r:" + util.Region(region)
}

func (p *Redis) regionsKey() string { return p.env + ":regions" }

func (p *Redis) load(ctx context.Context, k string) (wire.Entry, bool, error) {
	b, err := p.rdb.Get(ctx, k).Bytes()
	if err == goredis.Nil {
		return wire.Entry{}, false, nil // miss
	}
	if err != nil {
		return wire.Entry{}, false, err // transport/server error
	}
	return p.check(ctx, k, b)
}

func (p *Redis) check(ctx context.Context, k string, b []byte) (wire.Entry, bool, error) {
	e, err := wire.Decode(b)
	if err != nil {
		p.Log().Debug("dropped corrupt entry", pr.Fields{"tier": p.Name(), "key": k})
		return wire.Entry{}, false, p.rdb.Del(ctx, k).Err()
	}
	// server TTL and entry expiry can disagree by a clock tick
	if e.Expired(p.Now()) {
		return wire.Entry{}, false, p.rdb.Del(ctx, k).Err()
	}
	return e, true, nil
}

func (p *Redis) Get(ctx context.Context, key, region string) (any, bool, error) {
	if !p.Enabled() {
		return nil, false, nil
	}
	k := p.entryKey(key, region)
	e, ok, err := p.load(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	if e.Sliding {
		e = e.Touch(p.Now())
		raw, err := wire.Encode(e)
		if err != nil {
			return nil, false, err
		}
		if err := p.rdb.Set(ctx, k, raw, e.TTL(p.Now())).Err(); err != nil {
			return nil, false, err
		}
	}
	v, err := p.Value(e)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (p *Redis) Inspect(ctx context.Context, key, region string) (pr.Item, bool, error) {
	if !p.Enabled() {
		return pr.Item{}, false, nil
	}
	e, ok, err := p.load(ctx, p.entryKey(key, region))
	if err != nil || !ok {
		return pr.Item{}, false, err
	}
	it, err := p.Item(e)
	return it, err == nil, err
}

func (p *Redis) Exist(ctx context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return false, nil
	}
	_, ok, err := p.load(ctx, p.entryKey(key, region))
	return ok, err
}

func (p *Redis) Add(ctx context.Context, key string, value any, region string, opts pr.Options) (bool, error) {
	return p.add(ctx, key, value, region, opts, false)
}

func (p *Redis) AddPermanent(ctx context.Context, key string, value any, region string, opts pr.Options) (bool, error) {
	return p.add(ctx, key, value, region, opts, true)
}

func (p *Redis) add(ctx context.Context, key string, value any, region string, opts pr.Options, permanent bool) (bool, error) {
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
	_, err = p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		// TTL 0 => no expiry
		pipe.Set(ctx, p.entryKey(key, region), raw, e.TTL(p.Now()))
		pipe.SAdd(ctx, p.regionKey(region), key)
		pipe.SAdd(ctx, p.regionsKey(), region)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Remove(ctx context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, p.entryKey(key, region))
		pipe.SRem(ctx, p.regionKey(region), key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) RemoveAll(ctx context.Context) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	regions, err := p.rdb.SMembers(ctx, p.regionsKey()).Result()
	if err != nil {
		return false, err
	}
	for _, region := range regions {
		if err := p.dropRegion(ctx, region); err != nil {
			return false, err
		}
	}
	if err := p.rdb.Del(ctx, p.regionsKey()).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) RemoveRegion(ctx context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	region = util.Region(region)
	if err := p.dropRegion(ctx, region); err != nil {
		return false, err
	}
	if err := p.rdb.SRem(ctx, p.regionsKey(), region).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) dropRegion(ctx context.Context, region string) error {
	keys, err := p.rdb.SMembers(ctx, p.regionKey(region)).Result()
	if err != nil {
		return err
	}
	del := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		del = append(del, p.entryKey(key, region))
	}
	del = append(del, p.regionKey(region))
	return p.rdb.Del(ctx, del...).Err()
}

func (p *Redis) RemoveExpired(ctx context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	if _, err := p.scan(ctx, region); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Count(ctx context.Context, region string) (int64, error) {
	if !p.Enabled() {
		return 0, nil
	}
	return p.scan(ctx, region)
}

// scan loads every indexed key of region in one pipeline, deletes dead
// entries, prunes the index and returns the live count.
func (p *Redis) scan(ctx context.Context, region string) (int64, error) {
	region = util.Region(region)
	keys, err := p.rdb.SMembers(ctx, p.regionKey(region)).Result()
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	cmds := make([]*goredis.StringCmd, len(keys))
	_, err = p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.Get(ctx, p.entryKey(key, region))
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, err
	}

	var (
		live int64
		dead []any
	)
	for i, cmd := range cmds {
		b, err := cmd.Bytes()
		if err == goredis.Nil {
			dead = append(dead, keys[i])
			continue
		}
		if err != nil {
			return 0, err
		}
		_, ok, err := p.check(ctx, p.entryKey(keys[i], region), b)
		if err != nil {
			return 0, err
		}
		if !ok {
			dead = append(dead, keys[i])
			continue
		}
		live++
	}
	if len(dead) > 0 {
		if err := p.rdb.SRem(ctx, p.regionKey(region), dead...).Err(); err != nil {
			return 0, err
		}
		p.Log().Debug("pruned region index", pr.Fields{"tier": p.Name(), "region": region, "removed": len(dead)})
	}
	return live, nil
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
