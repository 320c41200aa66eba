package bot

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/pkg/metrics"
)

// ErrSequencerClosed is returned by Enqueue after Close.
var ErrSequencerClosed = stdErrors.New("sequencer is closed")

// Sequencer runs updates of the same user one at a time in arrival order.
// Each user with pending updates has one goroutine draining a FIFO mailbox; different users run concurrently.
type Sequencer struct {
	mu        sync.Mutex
	mailboxes map[int64]*mailbox
	closed    bool

	handle func(telebot.Context) error
	wg     conc.WaitGroup
	log    *slog.Logger
}

type mailbox struct {
	queue []telebot.Context
}

// NewSequencer creates a Sequencer that passes every update to handle.
func NewSequencer(handle func(telebot.Context) error, log *slog.Logger) *Sequencer {
	if log == nil {
		log = slog.Default()
	}

	return &Sequencer{
		mailboxes: make(map[int64]*mailbox),
		handle:    handle,
		log:       log,
	}
}

// Enqueue appends c to its user's mailbox and returns immediately.
func (s *Sequencer) Enqueue(c telebot.Context) error {
	key := mailboxKey(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSequencerClosed
	}

	metrics.AddPendingUpdates(1)

	if mb, ok := s.mailboxes[key]; ok {
		mb.queue = append(mb.queue, c)
		return nil
	}

	mb := &mailbox{queue: []telebot.Context{c}}
	s.mailboxes[key] = mb
	s.wg.Go(func() { s.drain(key, mb) })

	return nil
}

// Pending returns the number of updates waiting across all mailboxes.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, mb := range s.mailboxes {
		total += len(mb.queue)
	}
	return total
}

// Close stops accepting updates and waits for queued ones to finish or ctx to expire.
func (s *Sequencer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("sequencer drain interrupted", slog.Int("pending", s.Pending()))
		return ctx.Err()
	}
}

func (s *Sequencer) drain(key int64, mb *mailbox) {
	for {
		s.mu.Lock()
		if len(mb.queue) == 0 {
			delete(s.mailboxes, key)
			s.mu.Unlock()
			return
		}
		c := mb.queue[0]
		mb.queue[0] = nil
		mb.queue = mb.queue[1:]
		s.mu.Unlock()

		metrics.AddPendingUpdates(-1)
		s.run(key, c)
	}
}

func (s *Sequencer) run(key int64, c telebot.Context) {
	var catcher panics.Catcher
	catcher.Try(func() {
		if err := s.handle(c); err != nil {
			s.log.Error("update handling failed", slog.Int64("user_id", key), slog.Any("error", err))
		}
	})

	if recovered := catcher.Recovered(); recovered != nil {
		s.log.Error("update handler panicked",
			slog.Int64("user_id", key),
			slog.Any("panic", recovered.Value),
			slog.String("stack", string(recovered.Stack)),
		)
	}
}

func mailboxKey(c telebot.Context) int64 {
	if c == nil {
		return 0
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID
	}
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}
