package middleware

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/idempotency"
)

// Dedup drops updates the guard has already accepted, such as webhook redeliveries.
func Dedup(guard *idempotency.Guard, log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			key := idempotency.UpdateKey(c)
			if !guard.First(context.Background(), key) {
				log.Info("duplicate update dropped", slog.String("key", key))
				return nil
			}
			return next(c)
		}
	}
}
