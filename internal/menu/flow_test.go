package menu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockbot/internal/bot/keyboard"
	"github.com/Proton-105/stockbot/internal/jobs"
	"github.com/Proton-105/stockbot/internal/state"
)

const (
	testUser = int64(42)
	testChat = int64(4200)
)

type flowFixture struct {
	flow      *Flow
	states    state.StateMachine
	messenger *recordingMessenger
	executor  *fakeSubmitter
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	fx := &flowFixture{
		states:    testStates(),
		messenger: &recordingMessenger{},
		executor:  &fakeSubmitter{},
	}
	fx.flow = NewFlow(fx.states, fx.executor, fx.messenger, testCatalog(t), nil,
		Config{DefaultSymbol: "RELIANCE.NS", StaleAfter: 10 * time.Minute}, testLogger())
	return fx
}

func (fx *flowFixture) currentState(t *testing.T) state.State {
	t.Helper()
	st, err := fx.states.GetState(context.Background(), testUser)
	require.NoError(t, err)
	return st.CurrentState
}

func event(action Action, args ...string) Event {
	return Event{Action: action, UserID: testUser, ChatID: testChat, Args: args, Lang: "en"}
}

func TestFlow_MenuSendsWelcomeWithKeyboard(t *testing.T) {
	fx := newFlowFixture(t)

	require.NoError(t, fx.flow.Handle(context.Background(), event(ActionMenu)))

	last := fx.messenger.last()
	assert.Equal(t, "Welcome to StockBot! Choose an option:", last.text)
	require.NotNil(t, last.markup)
	assert.Len(t, last.markup.InlineKeyboard, 3)
	assert.False(t, last.edited)
	assert.Equal(t, state.StateMainMenu, fx.currentState(t))
}

func TestFlow_MenuFromButtonEditsMessage(t *testing.T) {
	fx := newFlowFixture(t)

	ev := event(ActionMenu)
	ev.MessageID = 17
	require.NoError(t, fx.flow.Handle(context.Background(), ev))

	last := fx.messenger.last()
	assert.True(t, last.edited)
	assert.Equal(t, 17, last.msgID)
}

func TestFlow_MenuFallsBackToSendWhenEditFails(t *testing.T) {
	fx := newFlowFixture(t)
	fx.messenger.editErr = assert.AnError

	ev := event(ActionMenu)
	ev.MessageID = 17
	require.NoError(t, fx.flow.Handle(context.Background(), ev))

	last := fx.messenger.last()
	assert.False(t, last.edited)
	assert.Equal(t, "Welcome to StockBot! Choose an option:", last.text)
}

func TestFlow_UnknownRepliesWithHelpAndMenu(t *testing.T) {
	fx := newFlowFixture(t)

	require.NoError(t, fx.flow.Handle(context.Background(), event(ActionUnknown)))

	texts := fx.messenger.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Sorry, I didn't understand that.")
	assert.Contains(t, texts[0], "RELIANCE.NS")
	assert.Equal(t, "Welcome to StockBot! Choose an option:", texts[1])
}

func TestFlow_CancelReturnsToMenu(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.states.TransitionTo(ctx, testUser, state.StateAwaitingDownload, nil))

	require.NoError(t, fx.flow.Handle(ctx, event(ActionCancel)))

	texts := fx.messenger.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Operation cancelled. Returning to main menu.", texts[0])
	assert.Equal(t, state.StateMainMenu, fx.currentState(t))
}

func TestFlow_ChartRequestSubmitsJob(t *testing.T) {
	testCases := []struct {
		name        string
		action      Action
		args        []string
		wantHorizon string
		wantSymbol  string
	}{
		{name: "swing default symbol", action: ActionSwing, wantHorizon: "swing", wantSymbol: "RELIANCE.NS"},
		{name: "long term explicit symbol", action: ActionLongTerm, args: []string{"tcs.ns"}, wantHorizon: "longterm", wantSymbol: "TCS.NS"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFlowFixture(t)

			require.NoError(t, fx.flow.Handle(context.Background(), event(tc.action, tc.args...)))

			require.Len(t, fx.executor.submissions, 1)
			sub := fx.executor.submissions[0]
			assert.Equal(t, jobs.TaskTypeChartRender, sub.taskType)

			payload, err := jobs.Decode[jobs.ChartRenderPayload](sub.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.wantHorizon, payload.Horizon)
			assert.Equal(t, tc.wantSymbol, payload.Symbol)
			assert.Equal(t, testUser, payload.UserID)
			assert.Equal(t, testChat, payload.ChatID)
			assert.Equal(t, "en", payload.Lang)
			assert.NotZero(t, payload.MessageID)

			assert.Contains(t, fx.messenger.last().text, tc.wantSymbol)
			assert.Equal(t, state.StateAwaitingChart, fx.currentState(t))
		})
	}
}

func TestFlow_InvalidSymbolIsRejected(t *testing.T) {
	fx := newFlowFixture(t)

	require.NoError(t, fx.flow.Handle(context.Background(), event(ActionSwing, "not a symbol!")))

	assert.Empty(t, fx.executor.submissions)
	last := fx.messenger.last()
	assert.Contains(t, last.text, "Invalid symbol")
	require.NotNil(t, last.markup)
	assert.Equal(t, keyboard.UniqueMenu, last.markup.InlineKeyboard[0][0].Data)
}

func TestFlow_DownloadRequestSubmitsJob(t *testing.T) {
	fx := newFlowFixture(t)

	ev := event(ActionDownload)
	ev.MessageID = 9
	require.NoError(t, fx.flow.Handle(context.Background(), ev))

	require.Len(t, fx.executor.submissions, 1)
	assert.Equal(t, jobs.TaskTypeMTFExport, fx.executor.submissions[0].taskType)

	payload, err := jobs.Decode[jobs.MTFExportPayload](fx.executor.submissions[0].payload)
	require.NoError(t, err)
	assert.Equal(t, 9, payload.MessageID)
	require.NotEmpty(t, payload.RequestID)

	st, err := fx.states.GetState(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, payload.RequestID, st.Context[state.ContextRequestID])

	last := fx.messenger.last()
	assert.True(t, last.edited)
	assert.Equal(t, "⏳ Fetching Groww MTF data, this can take a minute...", last.text)
	assert.Equal(t, state.StateAwaitingDownload, fx.currentState(t))
}

func TestFlow_BusyUserGetsBusyReply(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Handle(ctx, event(ActionDownload)))
	require.NoError(t, fx.flow.Handle(ctx, event(ActionSwing)))

	assert.Len(t, fx.executor.submissions, 1)
	assert.Contains(t, fx.messenger.last().text, "still being processed")
	assert.Equal(t, state.StateAwaitingDownload, fx.currentState(t))
}

func TestFlow_StaleRequestIsReset(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Handle(ctx, event(ActionDownload)))
	fx.flow.now = func() time.Time { return time.Now().Add(time.Hour) }
	require.NoError(t, fx.flow.Handle(ctx, event(ActionSwing)))

	assert.Len(t, fx.executor.submissions, 2)
	assert.Equal(t, state.StateAwaitingChart, fx.currentState(t))
}

func TestFlow_SubmitFailureReturnsToMenu(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantText string
	}{
		{name: "queue full", err: jobs.ErrQueueFull, wantText: "⏳ The bot is busy right now. Please try again in a minute."},
		{name: "broker down", err: assert.AnError, wantText: "⚠️ Something went wrong. Please try again later."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFlowFixture(t)
			fx.executor.err = tc.err

			require.NoError(t, fx.flow.Handle(context.Background(), event(ActionDownload)))

			last := fx.messenger.last()
			assert.Equal(t, tc.wantText, last.text)
			require.NotNil(t, last.markup)
			assert.Equal(t, state.StateMainMenu, fx.currentState(t))
		})
	}
}

func TestFlow_StatusOffersWayBack(t *testing.T) {
	fx := newFlowFixture(t)

	require.NoError(t, fx.flow.Handle(context.Background(), event(ActionStatus)))

	last := fx.messenger.last()
	assert.Contains(t, last.text, "still being processed")
	require.NotNil(t, last.markup)
	assert.Equal(t, keyboard.UniqueMenu, last.markup.InlineKeyboard[0][0].Data)
}
