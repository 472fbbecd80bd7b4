package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsTTL(t *testing.T) {
	tier := 90 * time.Second
	tests := []struct {
		minutes int
		want    time.Duration
	}{
		{DefaultExpirationMinutes, tier},
		{0, tier},
		{-4, tier},
		{1, time.Minute},
		{16, 16 * time.Minute},
		{14, 14 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Options{ExpirationMinutes: tt.minutes}.TTL(tier), "minutes=%d", tt.minutes)
	}
	assert.Equal(t, tier, DefaultOptions().TTL(tier))
}

func TestOptionsSkips(t *testing.T) {
	o := Options{SkipProviders: []string{" MemoryTier ", "", "redis"}}
	assert.True(t, o.Skips("memorytier"))
	assert.True(t, o.Skips("REDIS"))
	assert.False(t, o.Skips("docstore"))
	assert.False(t, o.Skips(""))
	assert.False(t, Options{}.Skips("memory"))
}

func TestConfigError(t *testing.T) {
	err := error(NewConfigError("timeout", "must be positive, got %d", -1))
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), `"timeout"`)
	assert.Contains(t, err.Error(), "-1")

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "timeout", ce.Key)
	assert.Equal(t, "multicache: config: bad", (&ConfigError{Reason: "bad"}).Error())
}

func TestNewBase(t *testing.T) {
	_, err := NewBase(Config{Name: "memory"})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "timeout", ce.Key)

	now := time.Unix(1_700_000_000, 0)
	b, err := NewBase(Config{Name: "memory", Timeout: time.Minute, Clock: func() time.Time { return now }})
	require.NoError(t, err)
	assert.True(t, b.Enabled())
	assert.Equal(t, now, b.Now())

	e, err := b.NewEntry("payload", Options{Validator: "v1", Sliding: true}, false)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), e.ExpiresAt)

	it, err := b.Item(e)
	require.NoError(t, err)
	assert.Equal(t, "payload", it.Value)
	assert.Equal(t, "v1", it.Validator)
	assert.True(t, it.Sliding)

	_, err = b.NewEntry(struct{}{}, DefaultOptions(), false)
	assert.Error(t, err, "unregistered type")
}
