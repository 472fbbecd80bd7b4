// Package providertest is a conformance suite for provider.Provider
// implementations.
//
// Example usage:
//
//	func TestConformance(t *testing.T) {
//	    providertest.Run(t, providertest.Harness{
//	        New: func(t *testing.T, base provider.Config) provider.Provider {
//	            p, err := mytier.New(base, mytier.Config{})
//	            require.NoError(t, err)
//	            return p
//	        },
//	    })
//	}
package providertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/multicache/codec"
	pr "github.com/unkn0wn-root/multicache/provider"
)

// Clock is a manually advanced clock for tests.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock() *Clock { return &Clock{t: time.Unix(1_700_000_000, 0)} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Record is a reference-type payload registered by Codec.
type Record struct {
	ID   string   `json:"id" msgpack:"id"`
	Name string   `json:"name" msgpack:"name"`
	Tags []string `json:"tags" msgpack:"tags"`
}

// Codec returns the builtin registry plus Record and *Record.
func Codec() *codec.Registry {
	r := codec.Default()
	codec.MustRegister[Record](r, "providertest.Record", codec.Msgpack[Record]{})
	codec.MustRegister[*Record](r, "providertest.*Record", codec.Msgpack[*Record]{})
	return r
}

// Harness adapts a tier to the suite.
type Harness struct {
	// New returns a fresh, empty provider built from base. The suite sets
	// base.Clock; the tier must read time only through it (or through Advance).
	New func(t *testing.T, base pr.Config) pr.Provider
	// Advance, if set, is called after the suite clock moves, so backends with
	// their own notion of time (e.g. a redis server) can follow.
	Advance func(d time.Duration)
}

// Timeout is the tier default lifetime used by the suite.
const Timeout = time.Minute

type env struct {
	t     *testing.T
	ctx   context.Context
	clock *Clock
	p     pr.Provider
	h     Harness
}

func (e *env) advance(d time.Duration) {
	e.clock.Advance(d)
	if e.h.Advance != nil {
		e.h.Advance(d)
	}
}

func (h Harness) setup(t *testing.T, disabled bool) *env {
	t.Helper()
	clock := NewClock()
	base := pr.Config{
		Application: "providertest",
		Name:        "tier",
		Timeout:     Timeout,
		Disabled:    disabled,
		Codec:       Codec(),
		Clock:       clock.Now,
	}
	p := h.New(t, base)
	ctx := context.Background()
	t.Cleanup(func() { _ = p.Close(ctx) })
	return &env{t: t, ctx: ctx, clock: clock, p: p, h: h}
}

// Run executes the full suite. Each subtest gets a fresh provider.
func Run(t *testing.T, h Harness) {
	tests := []struct {
		name string
		fn   func(*env)
	}{
		{"MissIsNotError", testMiss},
		{"RoundTrip", testRoundTrip},
		{"AddOverwrites", testOverwrite},
		{"TypedGet", testTypedGet},
		{"AbsoluteExpiry", testAbsoluteExpiry},
		{"ExpirationOverride", testExpirationOverride},
		{"SlidingRefreshedByGet", testSlidingGet},
		{"ExistDoesNotRefresh", testExistNoRefresh},
		{"Permanent", testPermanent},
		{"RemoveIdempotent", testRemove},
		{"RemoveRegionScoped", testRemoveRegion},
		{"RemoveAll", testRemoveAll},
		{"RemoveExpired", testRemoveExpired},
		{"CountScopedToRegion", testCount},
		{"RegionsSharingPrefix", testRegionsSharingPrefix},
		{"EmptyRegionIsDefault", testDefaultRegion},
		{"InspectValidator", testInspect},
		{"Compat", testCompat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(h.setup(t, false))
		})
	}
	t.Run("Disabled", func(t *testing.T) {
		testDisabled(h.setup(t, true))
	})
}

func testMiss(e *env) {
	v, ok, err := e.p.Get(e.ctx, "absent", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)
	assert.Nil(e.t, v)

	ok, err = e.p.Exist(e.ctx, "absent", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)
}

func testRoundTrip(e *env) {
	rec := Record{ID: "1", Name: "Ada", Tags: []string{"a"}}
	ptr := &Record{ID: "2", Name: "Bob"}
	values := map[string]any{
		"str":    "test",
		"int":    111,
		"record": rec,
		"ptr":    ptr,
	}
	for k, v := range values {
		ok, err := e.p.Add(e.ctx, k, v, "FirstRegion", pr.DefaultOptions())
		require.NoError(e.t, err)
		require.True(e.t, ok)
	}
	for k, want := range values {
		got, ok, err := e.p.Get(e.ctx, k, "FirstRegion")
		require.NoError(e.t, err)
		require.True(e.t, ok, k)
		assert.IsType(e.t, want, got, k)
		assert.Equal(e.t, want, got, k)
	}
}

func testOverwrite(e *env) {
	for _, v := range []string{"one", "two"} {
		ok, err := e.p.Add(e.ctx, "k", v, "r", pr.DefaultOptions())
		require.NoError(e.t, err)
		require.True(e.t, ok)
	}
	got, ok, err := e.p.Get(e.ctx, "k", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok)
	assert.Equal(e.t, "two", got)

	n, err := e.p.Count(e.ctx, "r")
	require.NoError(e.t, err)
	assert.Equal(e.t, int64(1), n)
}

func testTypedGet(e *env) {
	_, err := e.p.Add(e.ctx, "n", 111, "r", pr.DefaultOptions())
	require.NoError(e.t, err)

	n, ok, err := pr.GetAs[int](e.ctx, e.p, "n", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok)
	assert.Equal(e.t, 111, n)

	_, ok, err = pr.GetAs[string](e.ctx, e.p, "n", "r")
	assert.ErrorIs(e.t, err, pr.ErrTypeMismatch)
	assert.False(e.t, ok)

	_, ok, err = pr.GetAs[string](e.ctx, e.p, "absent", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)
}

func testAbsoluteExpiry(e *env) {
	_, err := e.p.Add(e.ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(e.t, err)

	e.advance(Timeout - time.Second)
	_, ok, err := e.p.Get(e.ctx, "k", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok, "live before the tier timeout")

	e.advance(2 * time.Second)
	_, ok, err = e.p.Get(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok, "expired after the tier timeout")

	ok, err = e.p.Exist(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)

	n, err := e.p.Count(e.ctx, "r")
	require.NoError(e.t, err)
	assert.Zero(e.t, n)
}

func testExpirationOverride(e *env) {
	opts := pr.DefaultOptions()
	opts.ExpirationMinutes = 3
	_, err := e.p.Add(e.ctx, "long", "v", "r", opts)
	require.NoError(e.t, err)
	_, err = e.p.Add(e.ctx, "default", "v", "r", pr.DefaultOptions())
	require.NoError(e.t, err)

	e.advance(2 * time.Minute)
	ok, err := e.p.Exist(e.ctx, "long", "r")
	require.NoError(e.t, err)
	assert.True(e.t, ok, "explicit override outlives the tier timeout")

	ok, err = e.p.Exist(e.ctx, "default", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok, "sentinel defers to the tier timeout")
}

func testSlidingGet(e *env) {
	opts := pr.DefaultOptions()
	opts.Sliding = true
	_, err := e.p.Add(e.ctx, "k", "v", "r", opts)
	require.NoError(e.t, err)

	e.advance(50 * time.Second)
	_, ok, err := e.p.Get(e.ctx, "k", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok)

	e.advance(50 * time.Second) // 100s after write, 50s after last read
	_, ok, err = e.p.Get(e.ctx, "k", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok, "Get should have extended the sliding expiry")

	e.advance(Timeout + time.Second)
	_, ok, err = e.p.Get(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok, "expired one window after the last read")
}

func testExistNoRefresh(e *env) {
	opts := pr.DefaultOptions()
	opts.Sliding = true
	_, err := e.p.Add(e.ctx, "k", "v", "r", opts)
	require.NoError(e.t, err)

	e.advance(50 * time.Second)
	ok, err := e.p.Exist(e.ctx, "k", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok)

	e.advance(20 * time.Second)
	ok, err = e.p.Exist(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok, "Exist must not extend a sliding expiry")
}

func testPermanent(e *env) {
	ok, err := e.p.AddPermanent(e.ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(e.t, err)
	require.True(e.t, ok)

	e.advance(1000 * time.Hour)
	got, ok, err := e.p.Get(e.ctx, "k", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok)
	assert.Equal(e.t, "v", got)

	_, err = e.p.RemoveExpired(e.ctx, "r")
	require.NoError(e.t, err)
	ok, err = e.p.Exist(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.True(e.t, ok, "RemoveExpired must keep permanent entries")

	_, err = e.p.Remove(e.ctx, "k", "r")
	require.NoError(e.t, err)
	ok, err = e.p.Exist(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)
}

func testRemove(e *env) {
	_, err := e.p.Add(e.ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(e.t, err)

	for i := 0; i < 2; i++ {
		ok, err := e.p.Remove(e.ctx, "k", "r")
		require.NoError(e.t, err)
		assert.True(e.t, ok)
	}
	ok, err := e.p.Exist(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)
}

func testRemoveRegion(e *env) {
	for _, r := range []string{"a", "b"} {
		for _, k := range []string{"k1", "k2"} {
			_, err := e.p.Add(e.ctx, k, "v", r, pr.DefaultOptions())
			require.NoError(e.t, err)
		}
	}
	ok, err := e.p.RemoveRegion(e.ctx, "a")
	require.NoError(e.t, err)
	assert.True(e.t, ok)

	na, err := e.p.Count(e.ctx, "a")
	require.NoError(e.t, err)
	nb, err := e.p.Count(e.ctx, "b")
	require.NoError(e.t, err)
	assert.Zero(e.t, na)
	assert.Equal(e.t, int64(2), nb)

	ok, err = e.p.RemoveRegion(e.ctx, "never-used")
	require.NoError(e.t, err)
	assert.True(e.t, ok)
}

func testRemoveAll(e *env) {
	for _, r := range []string{"a", "b"} {
		_, err := e.p.Add(e.ctx, "k", "v", r, pr.DefaultOptions())
		require.NoError(e.t, err)
	}
	_, err := e.p.AddPermanent(e.ctx, "p", "v", "c", pr.DefaultOptions())
	require.NoError(e.t, err)

	ok, err := e.p.RemoveAll(e.ctx)
	require.NoError(e.t, err)
	assert.True(e.t, ok)

	for _, r := range []string{"a", "b", "c"} {
		n, err := e.p.Count(e.ctx, r)
		require.NoError(e.t, err)
		assert.Zero(e.t, n, r)
	}
}

func testRemoveExpired(e *env) {
	_, err := e.p.Add(e.ctx, "short", "v", "r", pr.DefaultOptions())
	require.NoError(e.t, err)
	opts := pr.DefaultOptions()
	opts.ExpirationMinutes = 5
	_, err = e.p.Add(e.ctx, "long", "v", "r", opts)
	require.NoError(e.t, err)

	e.advance(2 * time.Minute)
	ok, err := e.p.RemoveExpired(e.ctx, "r")
	require.NoError(e.t, err)
	assert.True(e.t, ok)

	n, err := e.p.Count(e.ctx, "r")
	require.NoError(e.t, err)
	assert.Equal(e.t, int64(1), n)

	ok, err = e.p.Exist(e.ctx, "long", "r")
	require.NoError(e.t, err)
	assert.True(e.t, ok)
}

func testCount(e *env) {
	for _, k := range []string{"k1", "k2", "k3"} {
		_, err := e.p.Add(e.ctx, k, "v", "A", pr.DefaultOptions())
		require.NoError(e.t, err)
	}
	_, err := e.p.Add(e.ctx, "k1", "v", "B", pr.DefaultOptions())
	require.NoError(e.t, err)

	na, err := e.p.Count(e.ctx, "A")
	require.NoError(e.t, err)
	nb, err := e.p.Count(e.ctx, "B")
	require.NoError(e.t, err)
	assert.Equal(e.t, int64(3), na)
	assert.Equal(e.t, int64(1), nb)
}

// Region "a" is a string prefix of region "a_b"; neither may see the other.
func testRegionsSharingPrefix(e *env) {
	_, err := e.p.Add(e.ctx, "k1", "v", "a", pr.DefaultOptions())
	require.NoError(e.t, err)
	_, err = e.p.AddPermanent(e.ctx, "x", "v", "a_b", pr.DefaultOptions())
	require.NoError(e.t, err)

	n, err := e.p.Count(e.ctx, "a")
	require.NoError(e.t, err)
	assert.Equal(e.t, int64(1), n)

	e.advance(2 * Timeout)
	_, err = e.p.RemoveExpired(e.ctx, "a")
	require.NoError(e.t, err)
	ok, err := e.p.Exist(e.ctx, "x", "a_b")
	require.NoError(e.t, err)
	assert.True(e.t, ok, "RemoveExpired(a) must not touch region a_b")

	_, err = e.p.Add(e.ctx, "k2", "v", "a", pr.DefaultOptions())
	require.NoError(e.t, err)
	ok, err = e.p.RemoveRegion(e.ctx, "a")
	require.NoError(e.t, err)
	assert.True(e.t, ok)

	ok, err = e.p.Exist(e.ctx, "x", "a_b")
	require.NoError(e.t, err)
	assert.True(e.t, ok, "RemoveRegion(a) must not touch region a_b")
	n, err = e.p.Count(e.ctx, "a_b")
	require.NoError(e.t, err)
	assert.Equal(e.t, int64(1), n)
}

func testDefaultRegion(e *env) {
	_, err := e.p.Add(e.ctx, "k", "v", "", pr.DefaultOptions())
	require.NoError(e.t, err)

	got, ok, err := e.p.Get(e.ctx, "k", "region")
	require.NoError(e.t, err)
	require.True(e.t, ok, "empty region maps to the default region")
	assert.Equal(e.t, "v", got)

	n, err := e.p.Count(e.ctx, "")
	require.NoError(e.t, err)
	assert.Equal(e.t, int64(1), n)
}

func testInspect(e *env) {
	in, ok := e.p.(pr.Inspector)
	if !ok {
		e.t.Skip("provider does not implement Inspector")
	}
	opts := pr.DefaultOptions()
	opts.Validator = "token-1"
	opts.Sliding = true
	_, err := e.p.Add(e.ctx, "k", "v", "r", opts)
	require.NoError(e.t, err)

	it, ok, err := in.Inspect(e.ctx, "k", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok)
	assert.Equal(e.t, "token-1", it.Validator)
	assert.Equal(e.t, "v", it.Value)
	assert.True(e.t, it.Sliding)
	assert.False(e.t, it.Permanent)

	_, ok, err = in.Inspect(e.ctx, "absent", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)
}

func testCompat(e *env) {
	ok, err := pr.AddExpiring(e.ctx, e.p, "minutes", "v", "r", 3)
	require.NoError(e.t, err)
	require.True(e.t, ok)
	ok, err = pr.AddSliding(e.ctx, e.p, "sliding", "v", "r", true, pr.DefaultExpirationMinutes)
	require.NoError(e.t, err)
	require.True(e.t, ok)

	e.advance(50 * time.Second)
	_, ok, err = e.p.Get(e.ctx, "sliding", "r")
	require.NoError(e.t, err)
	require.True(e.t, ok)

	e.advance(80 * time.Second)
	ok, err = e.p.Exist(e.ctx, "minutes", "r")
	require.NoError(e.t, err)
	assert.True(e.t, ok, "raw minutes override")
	ok, err = e.p.Exist(e.ctx, "sliding", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok, "sliding window elapsed since the last read")
}

func testDisabled(e *env) {
	assert.False(e.t, e.p.Enabled())

	ok, err := e.p.Add(e.ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(e.t, err)
	assert.True(e.t, ok)
	ok, err = e.p.AddPermanent(e.ctx, "k", "v", "r", pr.DefaultOptions())
	require.NoError(e.t, err)
	assert.True(e.t, ok)

	v, ok, err := e.p.Get(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)
	assert.Nil(e.t, v)

	ok, err = e.p.Exist(e.ctx, "k", "r")
	require.NoError(e.t, err)
	assert.False(e.t, ok)

	n, err := e.p.Count(e.ctx, "r")
	require.NoError(e.t, err)
	assert.Zero(e.t, n)

	for name, op := range map[string]func() (bool, error){
		"Remove":        func() (bool, error) { return e.p.Remove(e.ctx, "k", "r") },
		"RemoveAll":     func() (bool, error) { return e.p.RemoveAll(e.ctx) },
		"RemoveRegion":  func() (bool, error) { return e.p.RemoveRegion(e.ctx, "r") },
		"RemoveExpired": func() (bool, error) { return e.p.RemoveExpired(e.ctx, "r") },
	} {
		ok, err := op()
		require.NoError(e.t, err, name)
		assert.True(e.t, ok, name)
	}
}
