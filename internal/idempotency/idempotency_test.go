package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingStore struct{}

func (failingStore) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestGuard_First(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, testLogger()),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			guard := NewGuard(store, time.Minute, testLogger())
			ctx := context.Background()

			assert.True(t, guard.First(ctx, "upd:1"))
			assert.False(t, guard.First(ctx, "upd:1"))
			assert.True(t, guard.First(ctx, "upd:2"))
			assert.True(t, guard.First(ctx, ""))
		})
	}

	ttl := mr.TTL(keyPrefix + "upd:1")
	assert.Equal(t, time.Minute, ttl)
}

func TestGuard_AcceptsWhenDisabledOrFailing(t *testing.T) {
	ctx := context.Background()

	assert.True(t, NewGuard(failingStore{}, time.Minute, testLogger()).First(ctx, "upd:1"))

	disabled := NewGuard(NewMemoryStore(), 0, testLogger())
	assert.True(t, disabled.First(ctx, "upd:1"))
	assert.True(t, disabled.First(ctx, "upd:1"))

	var nilGuard *Guard
	assert.True(t, nilGuard.First(ctx, "upd:1"))
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	now = now.Add(30 * time.Second)
	claimed, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, 0, store.Cleanup())

	now = now.Add(time.Minute)
	assert.Equal(t, 1, store.Cleanup())

	claimed, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestUpdateKey(t *testing.T) {
	tb, err := telebot.NewBot(telebot.Settings{Token: "test-token", Offline: true})
	require.NoError(t, err)

	testCases := []struct {
		name   string
		update telebot.Update
		want   string
	}{
		{name: "update id", update: telebot.Update{ID: 17, Message: &telebot.Message{ID: 3}}, want: "upd:17"},
		{name: "callback id", update: telebot.Update{Callback: &telebot.Callback{ID: "abc"}}, want: "cb:abc"},
		{name: "message", update: telebot.Update{Message: &telebot.Message{ID: 3, Chat: &telebot.Chat{ID: 9}}}, want: "msg:" + GenerateKey(int64(9), 3)},
		{name: "empty", update: telebot.Update{}, want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UpdateKey(tb.NewContext(tc.update)))
		})
	}
}
