package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/multicache/provider"
	"github.com/unkn0wn-root/multicache/provider/providertest"
)

func TestConformance(t *testing.T) {
	providertest.Run(t, providertest.Harness{
		New: func(t *testing.T, base pr.Config) pr.Provider {
			p, err := New(base, Config{CleanupInterval: -1})
			require.NoError(t, err)
			return p
		},
	})
}

func TestRequiresTimeout(t *testing.T) {
	_, err := New(pr.Config{Name: "memory"}, Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, pr.ErrConfig)
}

// Two tiers built on their own stores must not see each other's entries.
func TestStoresAreNotShared(t *testing.T) {
	ctx := context.Background()
	base := pr.Config{Name: "memory", Timeout: time.Minute}

	a, err := New(base, Config{CleanupInterval: -1})
	require.NoError(t, err)
	b, err := New(base, Config{CleanupInterval: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx); _ = b.Close(ctx) })

	_, err = a.Add(ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(t, err)

	ok, err := b.Exist(ctx, "k", "r")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCallerOwnedStoreSurvivesClose(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0, nil)
	defer store.Close()

	p, err := New(pr.Config{Name: "memory", Timeout: time.Minute}, Config{Store: store})
	require.NoError(t, err)
	_, err = p.Add(ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))

	_, ok := store.Peek("r", "k")
	assert.True(t, ok, "closing the tier must not touch a caller-owned store")
}

func TestJanitorPurgesExpired(t *testing.T) {
	clock := providertest.NewClock()
	store := NewStore(10*time.Millisecond, clock.Now)
	defer store.Close()

	p, err := New(pr.Config{Name: "memory", Timeout: time.Minute, Clock: clock.Now}, Config{Store: store})
	require.NoError(t, err)
	_, err = p.Add(context.Background(), "k", "v", "r", pr.DefaultOptions())
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.regions) == 0
	}, time.Second, 5*time.Millisecond)
}
