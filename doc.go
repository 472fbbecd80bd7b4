// Package multicache implements a multi-tier object cache. Values are
// addressed by (key, region) and stored in one or more tiers, each an
// independent provider.Provider with its own default lifetime.
//
// Components:
//   - provider.Provider: capability contract every tier implements
//     (memory, ristretto, bigcache, redis, docstore).
//   - codec.Serializer: turns values into bytes and back, preserving type.
//   - Multi: the orchestrator. It is itself a Provider.
//
// Tiers are configured with a providers string, "Name" or "Name:seconds"
// entries separated by commas:
//
//	providers = "MemoryTier:1, DocStoreTier"
//
// The last tier is the master. Writes fan out to every tier not skipped by
// the call; reads are gated on the master holding the key, then served by the
// first tier that has it:
//
//	m, _ := multicache.New(ctx, multicache.Config{
//	    Timeout:   60,
//	    Providers: "memory:1, docstore",
//	    DocStore:  docstore.Config{Path: "/var/lib/app/cache", Env: "prod"},
//	})
//	defer m.Close(ctx)
//
//	_, _ = m.Add(ctx, "user:42", user, "users", provider.DefaultOptions())
//	u, ok, err := multicache.GetAs[User](ctx, m, "user:42", "users")
package multicache
