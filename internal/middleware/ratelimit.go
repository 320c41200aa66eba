package middleware

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/menu"
	"github.com/Proton-105/stockbot/internal/ratelimit"
)

// RateLimitMiddleware enforces per-user rate limits for incoming Telegram updates.
// Chart and download requests are additionally checked against their own stricter rules.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	catalog menu.Catalog
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, catalog menu.Catalog, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		catalog: catalog,
		log:     log,
	}
}

// Handle returns a telebot middleware that enforces per-user rate limits.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil || !m.rules.Enabled() {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		userID := sender.ID
		if m.rules.IsWhitelisted(userID) {
			return next(c)
		}

		ctx := context.Background()

		limit, window, err := m.rules.GetPerUserLimit()
		if err != nil {
			m.log.Error("failed to load per-user rate limit", slog.Int64("user_id", userID), slog.Any("error", err))
			return next(c)
		}
		if !m.allow(ctx, fmt.Sprintf("user:%d", userID), limit, window) {
			return m.reject(c, userID, "per_user")
		}

		if command, ok := commandFor(actionOf(c)); ok {
			limit, window, err := m.rules.GetCommandLimit(command)
			if err != nil {
				m.log.Error("failed to load command rate limit", slog.String("command", command), slog.Any("error", err))
				return next(c)
			}
			if !m.allow(ctx, fmt.Sprintf("user:%d:%s", userID, command), limit, window) {
				return m.reject(c, userID, command)
			}
		}

		return next(c)
	}
}

// allow fails open when the limiter itself is unavailable.
func (m *RateLimitMiddleware) allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	result, err := m.limiter.Check(ctx, key, limit, window)
	if err != nil {
		if stdErrors.Is(err, ratelimit.ErrLimitExceeded) {
			return false
		}
		m.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		return true
	}

	return result == nil || result.Allowed
}

func (m *RateLimitMiddleware) reject(c telebot.Context, userID int64, rule string) error {
	m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID), slog.String("rule", rule))

	text := "Too many requests. Try again later."
	if m.catalog != nil {
		lang := ""
		if c.Sender() != nil {
			lang = c.Sender().LanguageCode
		}
		text = m.catalog.Translator(lang).T("ratelimit.exceeded")
	}

	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Send(text)
}

func commandFor(action menu.Action) (string, bool) {
	switch action {
	case menu.ActionSwing, menu.ActionLongTerm:
		return ratelimit.CommandChart, true
	case menu.ActionDownload:
		return ratelimit.CommandDownload, true
	default:
		return "", false
	}
}
