package multicache

import (
	"context"
	"strconv"
	"strings"
	"time"

	pr "github.com/unkn0wn-root/multicache/provider"
	"github.com/unkn0wn-root/multicache/provider/bigcache"
	"github.com/unkn0wn-root/multicache/provider/docstore"
	"github.com/unkn0wn-root/multicache/provider/memory"
	"github.com/unkn0wn-root/multicache/provider/redis"
	"github.com/unkn0wn-root/multicache/provider/ristretto"
)

// Factory builds one tier. base carries the tier name and its budget as
// Timeout; cfg supplies the tier-specific section.
type Factory func(ctx context.Context, base pr.Config, cfg *Config) (pr.Provider, error)

// The registry is closed: tiers are compiled in, not discovered.
var factories = map[string]Factory{
	"memory": func(_ context.Context, base pr.Config, cfg *Config) (pr.Provider, error) {
		return memory.New(base, cfg.Memory)
	},
	"ristretto": func(_ context.Context, base pr.Config, cfg *Config) (pr.Provider, error) {
		return ristretto.New(base, cfg.Ristretto)
	},
	"bigcache": func(_ context.Context, base pr.Config, cfg *Config) (pr.Provider, error) {
		return bigcache.New(base, cfg.BigCache)
	},
	"redis": func(ctx context.Context, base pr.Config, cfg *Config) (pr.Provider, error) {
		return redis.New(ctx, base, cfg.Redis)
	},
	"docstore": func(_ context.Context, base pr.Config, cfg *Config) (pr.Provider, error) {
		return docstore.New(base, cfg.DocStore)
	},
}

var aliases = map[string]string{
	"memorytier":          "memory",
	"memorycacheprovider": "memory",
	"ristrettotier":       "ristretto",
	"bigcachetier":        "bigcache",
	"redistier":           "redis",
	"docstoretier":        "docstore",
	"mongocacheprovider":  "docstore",
}

// Canonical resolves a configured provider name, case-insensitively and
// through aliases, to its registry name.
func Canonical(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		n = a
	}
	_, ok := factories[n]
	return n, ok
}

// TierSpec is one parsed entry of a providers string.
type TierSpec struct {
	Name     string // as written
	Kind     string // canonical registry name
	Override bool   // Budget came from an explicit ":seconds"
	Budget   time.Duration
}

// ParseProviders parses "Name[:seconds], ..." against total, the orchestrator
// timeout. Entries without an override share total evenly, at least one
// second each. Names must be known and unique.
func ParseProviders(providers string, total time.Duration) ([]TierSpec, error) {
	var specs []TierSpec
	seen := make(map[string]string)
	plain := 0
	for _, raw := range strings.Split(providers, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, secs, hasOverride := strings.Cut(raw, ":")
		name = strings.TrimSpace(name)
		kind, ok := Canonical(name)
		if !ok {
			return nil, pr.NewConfigError("providers", "unknown provider %q", name)
		}
		if prev, dup := seen[kind]; dup {
			return nil, pr.NewConfigError("providers", "%q duplicates %q", name, prev)
		}
		seen[kind] = name

		spec := TierSpec{Name: name, Kind: kind}
		if hasOverride {
			n, err := strconv.Atoi(strings.TrimSpace(secs))
			if err != nil || n <= 0 {
				return nil, pr.NewConfigError("providers", "invalid timeout override %q for %s", secs, name)
			}
			spec.Override = true
			spec.Budget = time.Duration(n) * time.Second
		} else {
			plain++
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, pr.NewConfigError("providers", "no providers configured")
	}

	share := int64(total/time.Second) / int64(max(1, plain))
	for i := range specs {
		if !specs[i].Override {
			specs[i].Budget = time.Duration(max(1, share)) * time.Second
		}
	}
	return specs, nil
}

// build constructs tiers in order. On failure the tiers already built are
// closed.
func build(ctx context.Context, cfg *Config, specs []TierSpec) ([]Tier, error) {
	tiers := make([]Tier, 0, len(specs))
	for _, s := range specs {
		base := pr.Config{
			Application: cfg.Application,
			Name:        s.Name,
			Timeout:     s.Budget,
			Disabled:    !cfg.enabled(),
			Codec:       cfg.Codec,
			Logger:      cfg.Logger,
			Clock:       cfg.Clock,
		}
		p, err := factories[s.Kind](ctx, base, cfg)
		if err != nil {
			for _, t := range tiers {
				_ = t.Provider.Close(ctx)
			}
			return nil, &TierError{Tier: s.Name, Op: "init", Err: err}
		}
		tiers = append(tiers, Tier{Name: s.Name, Kind: s.Kind, Budget: s.Budget, Provider: p})
	}
	return tiers, nil
}
