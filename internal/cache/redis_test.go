package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack-bot/internal/domain"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := New(Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	require.NoError(t, r.Ping(ctx))

	var missing map[string]float64
	ok, err := r.GetJSON(ctx, "fx:USD", &missing)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.SetJSON(ctx, "fx:USD", map[string]float64{"EUR": 0.92}, time.Minute))
	var rates map[string]float64
	ok, err = r.GetJSON(ctx, "fx:USD", &rates)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.92, rates["EUR"], 1e-9)

	mr.FastForward(2 * time.Minute)
	ok, err = r.GetJSON(ctx, "fx:USD", &rates)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetJSONDecodeError(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	require.NoError(t, mr.Set("bad", "not json"))

	var v map[string]any
	_, err := r.GetJSON(ctx, "bad", &v)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	require.NoError(t, r.SetJSON(ctx, "a", 1, 0))
	require.NoError(t, r.SetJSON(ctx, "b", 2, 0))

	require.NoError(t, r.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	require.NoError(t, r.Delete(ctx))
}

func TestAllowFixedWindow(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	for i := 0; i < 3; i++ {
		ok, err := r.Allow(ctx, "rl:u1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}
	ok, err := r.Allow(ctx, "rl:u1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("rl:u1"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = r.Allow(ctx, "rl:u1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTranscriptStoreKeepsTail(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	store := NewTranscriptStore(r, time.Hour, 3)
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	for i, text := range []string{"one", "two", "three", "four"} {
		require.NoError(t, store.Append(ctx, domain.Message{
			ID:        text,
			SessionID: "s1",
			Author:    domain.AuthorUser,
			Text:      text,
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Equal(t, "four", msgs[2].Text)
	assert.True(t, msgs[2].CreatedAt.Equal(at.Add(3*time.Second)))
	assert.Equal(t, time.Hour, mr.TTL("transcript:s1"))

	empty, err := store.Load(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
