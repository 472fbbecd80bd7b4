package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/multicache/provider"
	"github.com/unkn0wn-root/multicache/provider/providertest"
)

func base() pr.Config {
	return pr.Config{Name: "redis", Timeout: time.Minute, Clock: providertest.NewClock().Now}
}

func TestConformance(t *testing.T) {
	mr := miniredis.RunT(t)
	providertest.Run(t, providertest.Harness{
		New: func(t *testing.T, base pr.Config) pr.Provider {
			mr.FlushAll()
			rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			p, err := New(context.Background(), base, Config{Client: rdb, CloseClient: true, Env: "test"})
			require.NoError(t, err)
			return p
		},
		Advance: mr.FastForward,
	})
}

func TestConfigErrors(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, base(), Config{Host: "localhost"})
	var ce *pr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "env", ce.Key)

	_, err = New(ctx, base(), Config{Env: "test"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "host", ce.Key)
}

func TestConnectsFromHostAndPort(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	p, err := New(ctx, base(), Config{Host: mr.Host(), Port: mustPort(t, mr), Env: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	_, err = p.Add(ctx, "k", "v", "users", pr.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:e:users_k"))
	ok, err := mr.SIsMember("test:r:users", "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rdb := goredis.NewClient(&goredis.Options{Addr: addr, MaxRetries: -1})
	_, err := New(context.Background(), base(), Config{Client: rdb, CloseClient: true, Env: "test"})
	assert.Error(t, err)
}

func TestServerTTLFollowsEntry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	p, err := New(ctx, base(), Config{Client: rdb, CloseClient: true, Env: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	_, err = p.Add(ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("test:e:r_k"))

	_, err = p.AddPermanent(ctx, "p", "v", "r", pr.DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, mr.TTL("test:e:r_p"))
}

func TestCorruptValueIsDropped(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	p, err := New(ctx, base(), Config{Client: rdb, CloseClient: true, Env: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	require.NoError(t, mr.Set("test:e:r_k", "garbage"))
	_, err = mr.SAdd("test:r:r", "k")
	require.NoError(t, err)

	_, ok, err := p.Get(ctx, "k", "r")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:e:r_k"))

	n, err := p.Count(ctx, "r")
	require.NoError(t, err)
	assert.Zero(t, n)
	// redis drops a set once its last member is removed
	assert.False(t, mr.Exists("test:r:r"), "dead key pruned from the region index")
}

func TestPruneKeepsLiveIndexMembers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	p, err := New(ctx, base(), Config{Client: rdb, CloseClient: true, Env: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	_, err = p.Add(ctx, "live", "v", "r", pr.DefaultOptions())
	require.NoError(t, err)
	_, err = mr.SAdd("test:r:r", "gone")
	require.NoError(t, err)

	n, err := p.Count(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	members, err := mr.Members("test:r:r")
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, members)
}

func TestCallerOwnedClientSurvivesClose(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p, err := New(ctx, base(), Config{Client: rdb, Env: "test"})
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))
	require.NoError(t, rdb.Ping(ctx).Err())
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
