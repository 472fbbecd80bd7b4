package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/multicache/internal/util"
	pr "github.com/unkn0wn-root/multicache/provider"
	"github.com/unkn0wn-root/multicache/provider/providertest"
)

// small keeps the preallocated shard queues modest.
var small = Config{Shards: 16, MaxEntriesInWindow: 1024, MaxEntrySize: 256}

func TestConformance(t *testing.T) {
	providertest.Run(t, providertest.Harness{
		New: func(t *testing.T, base pr.Config) pr.Provider {
			p, err := New(base, small)
			require.NoError(t, err)
			return p
		},
	})
}

func TestRejectsNegativeLifeWindow(t *testing.T) {
	cfg := small
	cfg.LifeWindow = -time.Second
	_, err := New(pr.Config{Name: "bigcache", Timeout: time.Minute}, cfg)
	assert.ErrorIs(t, err, pr.ErrConfig)
}

func TestCorruptValueIsDropped(t *testing.T) {
	ctx := context.Background()
	p, err := New(pr.Config{Name: "bigcache", Timeout: time.Minute}, small)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	k := util.Combined("k", "r")
	require.NoError(t, p.c.Set(k, []byte("garbage")))

	ok, err := p.Exist(ctx, "k", "r")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.c.Get(k)
	assert.Error(t, err, "corrupt value should be deleted on read")
}

func TestCountIgnoresOtherRegions(t *testing.T) {
	ctx := context.Background()
	p, err := New(pr.Config{Name: "bigcache", Timeout: time.Minute}, small)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	_, err = p.Add(ctx, "k", "v", "users", pr.DefaultOptions())
	require.NoError(t, err)
	_, err = p.Add(ctx, "k", "v", "usersx", pr.DefaultOptions())
	require.NoError(t, err)

	n, err := p.Count(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPrefixRegionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	p, err := New(pr.Config{Name: "bigcache", Timeout: time.Minute}, small)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	_, err = p.Add(ctx, "k1", "v", "a", pr.DefaultOptions())
	require.NoError(t, err)
	_, err = p.Add(ctx, "x", "v", "a_b", pr.DefaultOptions())
	require.NoError(t, err)

	n, err := p.Count(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = p.RemoveRegion(ctx, "a")
	require.NoError(t, err)
	ok, err := p.Exist(ctx, "x", "a_b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIndexForgetsEvictedKeys(t *testing.T) {
	ctx := context.Background()
	p, err := New(pr.Config{Name: "bigcache", Timeout: time.Minute}, small)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	_, err = p.Add(ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, p.c.Delete(util.Combined("k", "r")))

	n, err := p.Count(ctx, "r")
	require.NoError(t, err)
	assert.Zero(t, n)

	p.mu.Lock()
	_, indexed := p.index["r"]
	p.mu.Unlock()
	assert.False(t, indexed)
}
