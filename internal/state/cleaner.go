package state

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner returns users whose request has been in flight longer than staleAfter to the main menu
// and drops states that have not been touched for ttl.
type Cleaner struct {
	storage    Storage
	log        *slog.Logger
	ttl        time.Duration
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(storage Storage, log *slog.Logger, ttl, staleAfter, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		storage:    storage,
		log:        log,
		ttl:        ttl,
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	states, err := c.storage.GetAllStates(ctx)
	if err != nil {
		c.log.Error("state cleaner failed to list states", slog.Any("error", err))
		return
	}

	now := c.now()
	for _, st := range states {
		if st == nil {
			continue
		}

		age := now.Sub(st.UpdatedAt)
		switch {
		case c.ttl > 0 && age > c.ttl:
			if err := c.storage.ClearState(ctx, st.UserID); err != nil {
				c.log.Error("state cleaner failed to clear state", slog.Int64("user_id", st.UserID), slog.Any("error", err))
				continue
			}
			c.log.Info("state session cleared", slog.Int64("user_id", st.UserID))
		case c.staleAfter > 0 && st.CurrentState.IsAwaiting() && age > c.staleAfter:
			reset := &UserState{UserID: st.UserID, CurrentState: StateMainMenu}
			if err := c.storage.SetState(ctx, st.UserID, reset); err != nil {
				c.log.Error("state cleaner failed to reset stale request", slog.Int64("user_id", st.UserID), slog.Any("error", err))
				continue
			}
			transitionRecorder(string(st.CurrentState), string(StateMainMenu))
			c.log.Warn("stale request reset to main menu",
				slog.Int64("user_id", st.UserID),
				slog.String("state", string(st.CurrentState)),
				slog.Duration("age", age),
			)
		}
	}
}
