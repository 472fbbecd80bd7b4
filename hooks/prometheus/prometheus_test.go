package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/multicache"
	pr "github.com/unkn0wn-root/multicache/provider"
	"github.com/unkn0wn-root/multicache/provider/memory"
)

type broken struct {
	*memory.Provider
}

var errDown = errors.New("backend down")

func (broken) Count(context.Context, string) (int64, error) { return 0, errDown }

func newTier(t *testing.T, name string) *memory.Provider {
	t.Helper()
	p, err := memory.New(pr.Config{Name: name, Timeout: time.Minute}, memory.Config{CleanupInterval: -1})
	require.NoError(t, err)
	return p
}

func TestCountsEvents(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	h, err := New(reg, Options{})
	require.NoError(t, err)

	m, err := multicache.NewFromTiers([]multicache.Tier{
		{Name: "l1", Provider: newTier(t, "l1")},
		{Name: "l2", Provider: broken{newTier(t, "l2")}},
	}, multicache.Options{Hooks: h})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })

	opts := pr.DefaultOptions()
	opts.SkipProviders = []string{"l2"}
	_, err = m.Add(ctx, "k", "v", "r", opts)
	require.NoError(t, err)

	_, ok, err := m.Get(ctx, "k", "r")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Count(ctx, "r")
	require.ErrorIs(t, err, errDown)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.skipped.WithLabelValues("l2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.gateMiss.WithLabelValues("l2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.errors.WithLabelValues("l2", "count")))
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "rejected has no series yet")
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, Options{Namespace: "app"})
	require.NoError(t, err)
	_, err = New(reg, Options{Namespace: "app"})
	assert.Error(t, err)
}
