package menu

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/artifacts"
	"github.com/Proton-105/stockbot/internal/bot/keyboard"
	"github.com/Proton-105/stockbot/internal/chart"
	"github.com/Proton-105/stockbot/internal/delivery"
	errors "github.com/Proton-105/stockbot/internal/errors"
	"github.com/Proton-105/stockbot/internal/i18n"
	"github.com/Proton-105/stockbot/internal/jobs"
	"github.com/Proton-105/stockbot/internal/mtf"
	"github.com/Proton-105/stockbot/internal/state"
)

// replyTimeout bounds the final replies of a job, which run detached from the job deadline.
const replyTimeout = 10 * time.Second

// ChartGenerator renders a chart artifact.
type ChartGenerator interface {
	Generate(ctx context.Context, horizon chart.Horizon, symbol string) (artifacts.Artifact, error)
}

// ExportGenerator produces the MTF CSV artifacts.
type ExportGenerator interface {
	Generate(ctx context.Context) (mtf.Report, error)
}

// Deliverer uploads artifacts and removes their files.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, t i18n.Translator, items []artifacts.Artifact) delivery.Report
}

// Registrar accepts job handlers.
type Registrar interface {
	Handle(taskType string, h jobs.Handler)
}

// Tasks runs the background half of chart and download requests.
type Tasks struct {
	states    state.StateMachine
	charts    ChartGenerator
	exports   ExportGenerator
	deliverer Deliverer
	messenger delivery.Messenger
	catalog   Catalog
	errs      *errors.Handler
	log       *slog.Logger
}

// NewTasks creates Tasks.
func NewTasks(
	states state.StateMachine,
	charts ChartGenerator,
	exports ExportGenerator,
	deliverer Deliverer,
	messenger delivery.Messenger,
	catalog Catalog,
	errs *errors.Handler,
	log *slog.Logger,
) *Tasks {
	if log == nil {
		log = slog.Default()
	}
	if errs == nil {
		errs = errors.NewHandler(log, false)
	}

	return &Tasks{
		states:    states,
		charts:    charts,
		exports:   exports,
		deliverer: deliverer,
		messenger: messenger,
		catalog:   catalog,
		errs:      errs,
		log:       log,
	}
}

// Register binds the task handlers to an executor.
func (t *Tasks) Register(r Registrar) {
	r.Handle(jobs.TaskTypeChartRender, t.RenderChart)
	r.Handle(jobs.TaskTypeMTFExport, t.ExportMTF)
}

// RenderChart generates and delivers one chart. Only malformed payloads are returned as errors;
// every other outcome is reported to the chat.
func (t *Tasks) RenderChart(ctx context.Context, data []byte) error {
	payload, err := jobs.Decode[jobs.ChartRenderPayload](data)
	if err != nil {
		return err
	}

	req := payload.Request
	tr := t.catalog.Translator(req.Lang)
	defer t.finish(req)

	horizon, err := chart.ParseHorizon(payload.Horizon)
	if err != nil {
		t.errs.Handle(ctx, errors.NewValidationError(err.Error()))
		t.replace(ctx, req, tr.T("chart.failed"), keyboard.BackToMenu(tr))
		return nil
	}

	artifact, err := t.charts.Generate(ctx, horizon, payload.Symbol)
	switch {
	case stdErrors.Is(err, chart.ErrNoData):
		t.replace(ctx, req, i18n.Format(tr, "chart.no_data", map[string]string{"Symbol": payload.Symbol}), keyboard.BackToMenu(tr))
		return nil
	case err != nil:
		t.errs.Handle(ctx, err)
		t.replace(ctx, req, tr.T("chart.failed"), keyboard.BackToMenu(tr))
		return nil
	}

	artifact.Caption = i18n.Format(tr, "chart.caption", map[string]string{"Symbol": payload.Symbol, "Horizon": horizon.Title()})
	result := t.deliverer.Deliver(ctx, req.ChatID, tr, []artifacts.Artifact{artifact})
	if result.Delivered == 0 {
		t.send(ctx, req.ChatID, tr.T("chart.not_delivered"), keyboard.BackToMenu(tr))
		return nil
	}
	t.send(ctx, req.ChatID, tr.T("chart.done"), keyboard.BackToMenu(tr))
	return nil
}

// ExportMTF fetches the listing, exports the leverage buckets and delivers the CSV files.
func (t *Tasks) ExportMTF(ctx context.Context, data []byte) error {
	payload, err := jobs.Decode[jobs.MTFExportPayload](data)
	if err != nil {
		return err
	}

	req := payload.Request
	tr := t.catalog.Translator(req.Lang)
	defer t.finish(req)

	report, err := t.exports.Generate(ctx)
	switch {
	case stdErrors.Is(err, mtf.ErrNoRecords):
		t.replace(ctx, req, tr.T("download.nothing"), keyboard.BackToMenu(tr))
		return nil
	case err != nil:
		t.errs.Handle(ctx, err)
		t.replace(ctx, req, tr.T("download.failed"), keyboard.BackToMenu(tr))
		return nil
	}

	t.replace(ctx, req, tr.T("download.ready"), nil)
	if report.Partial {
		t.send(ctx, req.ChatID, i18n.Format(tr, "download.partial", map[string]string{"Pages": strconv.Itoa(report.Pages)}), nil)
	}

	result := t.deliverer.Deliver(ctx, req.ChatID, tr, report.Artifacts)
	summary := i18n.Format(tr, "download.summary", map[string]string{
		"Delivered": strconv.Itoa(result.Delivered),
		"Total":     strconv.Itoa(result.Total),
	})
	t.send(ctx, req.ChatID, summary, keyboard.BackToMenu(tr))
	return nil
}

// finish returns the user to the main menu regardless of the job deadline, unless the user has
// already started another request.
func (t *Tasks) finish(req jobs.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	if !t.ownsState(ctx, req) {
		t.log.Info("user started another request, keeping its state", slog.Int64("user_id", req.UserID))
		return
	}

	if err := resetToMenu(ctx, t.states, req.UserID); err != nil {
		t.log.Error("failed to return user to main menu", slog.Int64("user_id", req.UserID), slog.Any("error", err))
	}
}

// ownsState reports whether the stored state may be reset by the job behind req. An awaiting state
// tagged with a different request id belongs to a newer request.
func (t *Tasks) ownsState(ctx context.Context, req jobs.Request) bool {
	if req.RequestID == "" {
		return true
	}

	current, err := t.states.GetState(ctx, req.UserID)
	if err != nil || current == nil || !current.CurrentState.IsAwaiting() {
		return true
	}

	owner, _ := current.Context[state.ContextRequestID].(string)
	return owner == "" || owner == req.RequestID
}

// replace edits the progress message when there is one and sends a new message otherwise.
func (t *Tasks) replace(ctx context.Context, req jobs.Request, text string, markup *telebot.ReplyMarkup) {
	ctx, cancel := detached(ctx)
	defer cancel()

	if req.MessageID != 0 {
		ref := delivery.MessageRef{ChatID: req.ChatID, MessageID: req.MessageID}
		if err := t.messenger.EditText(ctx, ref, text, markup); err == nil {
			return
		}
	}
	t.send(ctx, req.ChatID, text, markup)
}

func (t *Tasks) send(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) {
	ctx, cancel := detached(ctx)
	defer cancel()

	if _, err := t.messenger.SendText(ctx, chatID, text, markup); err != nil {
		t.log.ErrorContext(ctx, "failed to send message", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

// detached keeps the values of ctx, such as the correlation id, but not its deadline.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
}
