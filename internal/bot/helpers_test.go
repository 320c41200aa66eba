package bot

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/menu"
	"github.com/Proton-105/stockbot/internal/state"
	"github.com/Proton-105/stockbot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI records Bot API method calls.
type fakeAPI struct {
	mu      sync.Mutex
	methods []string
}

func (a *fakeAPI) calls(method string) int {
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

func newTestTelebot(t *testing.T) (*telebot.Bot, *fakeAPI) {
	t.Helper()

	api := &fakeAPI{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		api.mu.Lock()
		api.methods = append(api.methods, method)
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if method == "sendMessage" {
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"}}}`)
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
	return tb, api
}

type recordingFlow struct {
	mu     sync.Mutex
	events []menu.Event
	err    error
	panic  bool
}

func (f *recordingFlow) Handle(_ context.Context, ev menu.Event) error {
	if f.panic {
		panic("flow exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *recordingFlow) recorded() []menu.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]menu.Event(nil), f.events...)
}

func newTestBot(t *testing.T, flow *recordingFlow, cfg config.BotConfig) (*Bot, *fakeAPI, state.StateMachine) {
	t.Helper()

	tb, api := newTestTelebot(t)
	states := state.NewStateMachine(state.NewMemoryStorage(0), testLogger(), nil)
	b, err := New(tb, cfg, testLogger(), Dependencies{Flow: flow, States: states})
	require.NoError(t, err)
	return b, api, states
}

func textUpdate(id int, userID int64, text string) telebot.Update {
	return telebot.Update{
		ID: id,
		Message: &telebot.Message{
			ID:     id,
			Text:   text,
			Sender: &telebot.User{ID: userID, LanguageCode: "en"},
			Chat:   &telebot.Chat{ID: userID},
		},
	}
}

func callbackUpdate(id int, userID int64, data string, messageID int) telebot.Update {
	return telebot.Update{
		ID: id,
		Callback: &telebot.Callback{
			ID:     "cb",
			Data:   data,
			Sender: &telebot.User{ID: userID},
			Message: &telebot.Message{
				ID:   messageID,
				Chat: &telebot.Chat{ID: userID},
			},
		},
	}
}
