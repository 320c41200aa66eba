package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/bot/handlers"
	"github.com/Proton-105/stockbot/internal/menu"
	"github.com/Proton-105/stockbot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(actionLabel(c), status, time.Since(start))

		return err
	}
}

// actionLabel maps an update to a bounded set of metric label values.
func actionLabel(c telebot.Context) string {
	return actionOf(c).String()
}

func actionOf(c telebot.Context) menu.Action {
	if c == nil {
		return menu.ActionUnknown
	}

	if cb := c.Callback(); cb != nil {
		return menu.ParseCallback(cb.Data)
	}

	fields := strings.Fields(c.Text())
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		return menu.ParseCommand(fields[0])
	}

	return menu.ActionStatus
}
