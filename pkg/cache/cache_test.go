package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type label struct {
	Ticker string `json:"ticker"`
	Value  string `json:"value"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", label{Ticker: "SBER", Value: "Покупать"}, time.Minute))

	var got label
	require.NoError(t, mc.Get(ctx, "a", &got))
	assert.Equal(t, "Покупать", got.Value)

	var raw string
	require.NoError(t, mc.Get(ctx, "a", &raw))
	assert.JSONEq(t, `{"ticker":"SBER","value":"Покупать"}`, raw)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))

	now = now.Add(2 * time.Minute)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Zero(t, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Second); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, time.Hour))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	var n int
	require.NoError(t, mc.Get(ctx, "a", &n))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))

	assert.NoError(t, mc.Get(ctx, "a", &n))
	assert.ErrorIs(t, mc.Get(ctx, "b", &n), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "c", &n))
}

func TestMGetTyped(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "x", "Держать", time.Minute))
	require.NoError(t, mc.Set(ctx, "bad", []byte("{"), time.Minute))

	got, err := MGetTyped[string](ctx, mc, "x", "bad", "absent")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": "Держать"}, got)
}

func TestLayeredCacheFillsL1FromL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	require.NoError(t, l2.Set(ctx, "k", label{Ticker: "GAZP"}, time.Hour))

	var got label
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "GAZP", got.Ticker)

	require.NoError(t, l2.Delete(ctx, "k"))
	require.NoError(t, lc.Get(ctx, "k", &got), "served from L1")

	res, err := lc.MGet(ctx, "k", "none")
	require.NoError(t, err)
	assert.Len(t, res, 1)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "signals:RUS-SBER", Key("signals", "RUS-SBER"))
}
