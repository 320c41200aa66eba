package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/stockbot/internal/artifacts"
	errors "github.com/Proton-105/stockbot/internal/errors"
	"github.com/Proton-105/stockbot/internal/i18n"
	"github.com/Proton-105/stockbot/pkg/metrics"
)

// reportTimeout bounds a failure report, which is sent even after ctx has expired.
const reportTimeout = 10 * time.Second

// Report is the outcome of one Deliver call.
type Report struct {
	Total     int
	Delivered int
	Failed    []string
}

// Coordinator uploads artifacts and removes their local files afterwards.
type Coordinator struct {
	messenger Messenger
	log       *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(messenger Messenger, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}

	return &Coordinator{messenger: messenger, log: log}
}

// Deliver uploads each artifact in order. Every local file is removed after its attempt whether or
// not the upload succeeded; a failed upload is reported to the chat and the remaining artifacts
// are still attempted.
func (c *Coordinator) Deliver(ctx context.Context, chatID int64, t i18n.Translator, items []artifacts.Artifact) Report {
	report := Report{Total: len(items)}

	for _, item := range items {
		if err := c.deliverOne(ctx, chatID, item); err != nil {
			report.Failed = append(report.Failed, item.FileName)
			metrics.RecordDelivery(string(item.Kind), "failed")
			c.log.Error("artifact upload failed",
				slog.Int64("chat_id", chatID),
				slog.String("artifact", item.FileName),
				slog.Any("error", err),
			)

			c.reportFailure(ctx, chatID, i18n.Format(t, "delivery.failed", map[string]string{"Name": item.FileName}))
			continue
		}

		report.Delivered++
		metrics.RecordDelivery(string(item.Kind), "delivered")
	}

	return report
}

func (c *Coordinator) reportFailure(ctx context.Context, chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if _, err := c.messenger.SendText(ctx, chatID, text, nil); err != nil {
		c.log.Error("failed to report upload failure", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (c *Coordinator) deliverOne(ctx context.Context, chatID int64, item artifacts.Artifact) error {
	defer func() {
		if err := item.Remove(); err != nil {
			c.log.Warn("failed to remove delivered artifact", slog.String("path", item.Path), slog.Any("error", err))
		}
	}()

	return errors.WithRetry(ctx, func() error {
		switch item.Kind {
		case artifacts.KindPhoto:
			return c.messenger.SendPhoto(ctx, chatID, item.Path, item.Caption, nil)
		case artifacts.KindDocument:
			return c.messenger.SendDocument(ctx, chatID, item.Path, item.FileName, item.Caption, nil)
		default:
			return fmt.Errorf("unknown artifact kind %q", item.Kind)
		}
	})
}
