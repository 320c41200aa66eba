package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/i18n"
	"github.com/Proton-105/stockbot/internal/idempotency"
	"github.com/Proton-105/stockbot/internal/ratelimit"
	"github.com/Proton-105/stockbot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiCalls struct {
	mu      sync.Mutex
	methods []string
}

func (a *apiCalls) count(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, m := range a.methods {
		if m == method {
			n++
		}
	}
	return n
}

func newOfflineBot(t *testing.T) (*telebot.Bot, *apiCalls) {
	t.Helper()

	calls := &apiCalls{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		calls.mu.Lock()
		calls.methods = append(calls.methods, method)
		calls.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if method == "sendMessage" {
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":7,"type":"private"}}}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}))
	t.Cleanup(srv.Close)

	tb, err := telebot.NewBot(telebot.Settings{
		URL:         srv.URL,
		Token:       "test-token",
		Offline:     true,
		Synchronous: true,
	})
	require.NoError(t, err)
	return tb, calls
}

func textContext(tb *telebot.Bot, updateID int, userID int64, text string) telebot.Context {
	return tb.NewContext(telebot.Update{
		ID: updateID,
		Message: &telebot.Message{
			ID:     updateID,
			Sender: &telebot.User{ID: userID},
			Chat:   &telebot.Chat{ID: 7, Type: telebot.ChatPrivate},
			Text:   text,
		},
	})
}

func callbackContext(tb *telebot.Bot, updateID int, userID int64, data string) telebot.Context {
	return tb.NewContext(telebot.Update{
		ID: updateID,
		Callback: &telebot.Callback{
			ID:     "cb-1",
			Sender: &telebot.User{ID: userID},
			Data:   data,
			Message: &telebot.Message{
				ID:   3,
				Chat: &telebot.Chat{ID: 7, Type: telebot.ChatPrivate},
			},
		},
	})
}

func rateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:   true,
		PerUser:   config.RateLimitRule{Limit: 3, Window: "1m"},
		Whitelist: []int64{99},
		Commands: config.CommandsConfig{
			Chart:    config.RateLimitRule{Limit: 1, Window: "1m"},
			Download: config.RateLimitRule{Limit: 1, Window: "1m"},
		},
	}
}

func newRateLimit(t *testing.T, cfg config.RateLimitConfig) *RateLimitMiddleware {
	t.Helper()

	catalog, err := i18n.Load("en")
	require.NoError(t, err)
	return NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(), ratelimit.NewRules(cfg), catalog, testLogger())
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("per user limit rejects with a message", func(t *testing.T) {
		tb, calls := newOfflineBot(t)
		handled := 0
		handler := newRateLimit(t, rateLimitConfig()).Handle(func(telebot.Context) error {
			handled++
			return nil
		})

		for i := 1; i <= 4; i++ {
			require.NoError(t, handler(textContext(tb, i, 1, "/menu")))
		}

		assert.Equal(t, 3, handled)
		assert.Equal(t, 1, calls.count("sendMessage"))
	})

	t.Run("chart command has its own limit", func(t *testing.T) {
		tb, calls := newOfflineBot(t)
		handled := 0
		handler := newRateLimit(t, rateLimitConfig()).Handle(func(telebot.Context) error {
			handled++
			return nil
		})

		require.NoError(t, handler(textContext(tb, 1, 1, "/swing")))
		require.NoError(t, handler(textContext(tb, 2, 1, "/longterm")))
		require.NoError(t, handler(textContext(tb, 3, 1, "/download")))

		assert.Equal(t, 2, handled)
		assert.Equal(t, 1, calls.count("sendMessage"))
	})

	t.Run("rejected callback is answered with an alert", func(t *testing.T) {
		tb, calls := newOfflineBot(t)
		cfg := rateLimitConfig()
		cfg.PerUser.Limit = 0
		handler := newRateLimit(t, cfg).Handle(func(telebot.Context) error {
			t.Fatal("handler must not run")
			return nil
		})

		require.NoError(t, handler(callbackContext(tb, 1, 1, "mtf:download")))
		assert.Equal(t, 1, calls.count("answerCallbackQuery"))
	})

	t.Run("whitelisted user bypasses limits", func(t *testing.T) {
		tb, _ := newOfflineBot(t)
		cfg := rateLimitConfig()
		cfg.PerUser.Limit = 0
		handled := 0
		handler := newRateLimit(t, cfg).Handle(func(telebot.Context) error {
			handled++
			return nil
		})

		for i := 1; i <= 3; i++ {
			require.NoError(t, handler(textContext(tb, i, 99, "/swing")))
		}
		assert.Equal(t, 3, handled)
	})

	t.Run("disabled rules pass everything", func(t *testing.T) {
		tb, _ := newOfflineBot(t)
		cfg := rateLimitConfig()
		cfg.Enabled = false
		cfg.PerUser.Limit = 0
		handled := 0
		handler := newRateLimit(t, cfg).Handle(func(telebot.Context) error {
			handled++
			return nil
		})

		require.NoError(t, handler(textContext(tb, 1, 1, "/menu")))
		assert.Equal(t, 1, handled)
	})
}

type erroringLimiter struct{}

func (erroringLimiter) Check(context.Context, string, int, time.Duration) (*ratelimit.Result, error) {
	return nil, assert.AnError
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	tb, _ := newOfflineBot(t)
	m := NewRateLimitMiddleware(erroringLimiter{}, ratelimit.NewRules(rateLimitConfig()), nil, testLogger())

	handled := 0
	handler := m.Handle(func(telebot.Context) error {
		handled++
		return nil
	})

	require.NoError(t, handler(textContext(tb, 1, 1, "/swing")))
	assert.Equal(t, 1, handled)
}

func TestDedup(t *testing.T) {
	tb, _ := newOfflineBot(t)
	guard := idempotency.NewGuard(idempotency.NewMemoryStore(), time.Minute, testLogger())

	handled := 0
	handler := Dedup(guard, testLogger())(func(telebot.Context) error {
		handled++
		return nil
	})

	require.NoError(t, handler(textContext(tb, 10, 1, "/menu")))
	require.NoError(t, handler(textContext(tb, 10, 1, "/menu")))
	require.NoError(t, handler(textContext(tb, 11, 1, "/menu")))

	assert.Equal(t, 2, handled)
}

func TestActionLabel(t *testing.T) {
	tb, _ := newOfflineBot(t)

	tests := []struct {
		name string
		ctx  telebot.Context
		want string
	}{
		{name: "nil context", ctx: nil, want: "unknown"},
		{name: "command", ctx: textContext(tb, 1, 1, "/swing AAPL"), want: "swing"},
		{name: "free text", ctx: textContext(tb, 2, 1, "hello"), want: "status"},
		{name: "callback", ctx: callbackContext(tb, 3, 1, "mtf:download"), want: "download"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, actionLabel(tt.ctx))
		})
	}
}
