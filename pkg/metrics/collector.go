// Package metrics exposes the Prometheus collectors used across the bot.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/stockbot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	activeUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_users",
			Help: "Current number of users with a stored menu state",
		},
	)
	usersByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "users_by_state",
			Help: "Number of users per state",
		},
		[]string{"state"},
	)
	listingPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtf_listing_pages_total",
			Help: "MTF listing pages fetched by outcome",
		},
		[]string{"outcome"},
	)
	listingRecordsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtf_listing_records_skipped_total",
			Help: "MTF listing records dropped during validation by reason",
		},
		[]string{"reason"},
	)
	chartRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_renders_total",
			Help: "Chart generation attempts by horizon and outcome",
		},
		[]string{"horizon", "outcome"},
	)
	artifactDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_deliveries_total",
			Help: "Artifact uploads by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	jobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duration of offloaded jobs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"type", "status"},
	)
	pendingUpdates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_pending_updates",
			Help: "Updates accepted but not yet processed by per-user sequencers",
		},
	)
)

var trackedStates = []state.State{
	state.StateMainMenu,
	state.StateAwaitingChart,
	state.StateAwaitingDownload,
}

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks FSM transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordListingPage counts a listing page fetch; outcome is "ok", "empty" or "error".
func RecordListingPage(outcome string) {
	listingPagesTotal.WithLabelValues(outcome).Inc()
}

// RecordSkippedRecord counts a listing record dropped during validation.
func RecordSkippedRecord(reason string) {
	listingRecordsSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordChartRender counts a chart generation attempt.
func RecordChartRender(horizon, outcome string) {
	chartRendersTotal.WithLabelValues(horizon, outcome).Inc()
}

// RecordDelivery counts an artifact upload attempt.
func RecordDelivery(kind, outcome string) {
	artifactDeliveriesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordJob observes an offloaded job duration.
func RecordJob(jobType, status string, duration time.Duration) {
	jobDurationSeconds.WithLabelValues(jobType, status).Observe(duration.Seconds())
}

// AddPendingUpdates adjusts the sequencer backlog gauge.
func AddPendingUpdates(delta int) {
	pendingUpdates.Add(float64(delta))
}

// SetActiveUsers updates the gauge for current active users.
func SetActiveUsers(count int) {
	activeUsers.Set(float64(count))
}

// SetUsersByState updates the gauge for the given state.
func SetUsersByState(state string, count int) {
	if state == "" {
		state = "unknown"
	}

	usersByState.WithLabelValues(state).Set(float64(count))
}

// StateCollector periodically gathers FSM state counts and emits gauge metrics.
type StateCollector struct {
	fsm      state.StateMachine
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided FSM.
func NewStateCollector(fsm state.StateMachine, interval time.Duration) *StateCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StateCollector{fsm: fsm, interval: interval}
}

// Run polls the FSM on the configured interval, updating user gauges until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	states, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	SetActiveUsers(len(states))

	stateCounts := make(map[string]int, len(states))
	for _, st := range states {
		label := "unknown"
		if st != nil && st.CurrentState != "" {
			label = string(st.CurrentState)
		}
		stateCounts[label]++
	}

	usersByState.Reset()

	for _, tracked := range trackedStates {
		label := string(tracked)
		SetUsersByState(label, stateCounts[label])
		delete(stateCounts, label)
	}

	for label, count := range stateCounts {
		SetUsersByState(label, count)
	}

	return nil
}
