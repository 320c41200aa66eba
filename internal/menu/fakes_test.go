package menu

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/artifacts"
	"github.com/Proton-105/stockbot/internal/chart"
	"github.com/Proton-105/stockbot/internal/delivery"
	"github.com/Proton-105/stockbot/internal/i18n"
	"github.com/Proton-105/stockbot/internal/mtf"
	"github.com/Proton-105/stockbot/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) *i18n.Manager {
	t.Helper()
	catalog, err := i18n.Load("en")
	require.NoError(t, err)
	return catalog
}

func testStates() state.StateMachine {
	return state.NewStateMachine(state.NewMemoryStorage(0), testLogger(), nil)
}

type message struct {
	text   string
	markup *telebot.ReplyMarkup
	edited bool
	msgID  int
	chatID int64
}

type recordingMessenger struct {
	mu       sync.Mutex
	messages []message
	editErr  error
	nextID   int
}

func (m *recordingMessenger) SendText(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) (delivery.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return delivery.MessageRef{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.messages = append(m.messages, message{text: text, markup: markup, msgID: m.nextID, chatID: chatID})
	return delivery.MessageRef{ChatID: chatID, MessageID: m.nextID}, nil
}

func (m *recordingMessenger) EditText(ctx context.Context, ref delivery.MessageRef, text string, markup *telebot.ReplyMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.messages = append(m.messages, message{text: text, markup: markup, edited: true, msgID: ref.MessageID, chatID: ref.ChatID})
	return nil
}

func (m *recordingMessenger) SendPhoto(context.Context, int64, string, string, *telebot.ReplyMarkup) error {
	return nil
}

func (m *recordingMessenger) SendDocument(context.Context, int64, string, string, string, *telebot.ReplyMarkup) error {
	return nil
}

func (m *recordingMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, msg.text)
	}
	return out
}

func (m *recordingMessenger) last() message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return message{}
	}
	return m.messages[len(m.messages)-1]
}

type submission struct {
	taskType string
	payload  []byte
}

type fakeSubmitter struct {
	mu          sync.Mutex
	submissions []submission
	err         error
}

func (s *fakeSubmitter) Submit(_ context.Context, taskType string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.submissions = append(s.submissions, submission{taskType: taskType, payload: payload})
	return nil
}

type fakeCharts struct {
	artifact artifacts.Artifact
	err      error
	horizon  chart.Horizon
	symbol   string
	hang     bool
}

func (f *fakeCharts) Generate(ctx context.Context, horizon chart.Horizon, symbol string) (artifacts.Artifact, error) {
	f.horizon, f.symbol = horizon, symbol
	if f.hang {
		<-ctx.Done()
		return artifacts.Artifact{}, ctx.Err()
	}
	return f.artifact, f.err
}

type fakeExports struct {
	report mtf.Report
	err    error
	hang   bool
}

func (f *fakeExports) Generate(ctx context.Context) (mtf.Report, error) {
	if f.hang {
		<-ctx.Done()
		return mtf.Report{}, ctx.Err()
	}
	return f.report, f.err
}

type fakeDeliverer struct {
	delivered [][]artifacts.Artifact
	failed    int
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ int64, _ i18n.Translator, items []artifacts.Artifact) delivery.Report {
	f.delivered = append(f.delivered, items)
	return delivery.Report{Total: len(items), Delivered: len(items) - f.failed}
}
