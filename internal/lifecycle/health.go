package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// ErrNotReady is returned by Readiness before startup completes and after shutdown begins.
var ErrNotReady = errors.New("service is not ready")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes tracks whether the process is serving traffic.
type Probes struct {
	ready atomic.Bool
	log   *slog.Logger
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates Probes in the not-ready state.
func NewProbes(log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log}
}

// SetReady flips the readiness state.
func (p *Probes) SetReady(ready bool) {
	if p.ready.Swap(ready) != ready {
		p.log.Info("readiness changed", slog.Bool("ready", ready))
	}
}

// Liveness reports success while the process can serve HTTP.
func (p *Probes) Liveness(context.Context) error {
	return nil
}

// Readiness fails until SetReady(true) and after SetReady(false).
func (p *Probes) Readiness(context.Context) error {
	if !p.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// LivenessHandler serves the liveness probe.
func (p *Probes) LivenessHandler() http.Handler {
	return probeHandler(p.Liveness)
}

// ReadinessHandler serves the readiness probe.
func (p *Probes) ReadinessHandler() http.Handler {
	return probeHandler(p.Readiness)
}

func probeHandler(probe func(context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := probe(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, err.Error())
			return
		}
		_, _ = io.WriteString(w, "ok")
	})
}
