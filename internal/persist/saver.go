// Package persist writes account snapshots to durable storage off the
// request path.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// SaveFunc persists one account snapshot.
type SaveFunc func(ctx context.Context, state domain.AccountState) error

// Config tunes retries and timeouts.
type Config struct {
	SaveTimeout time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	MaxAttempts int
}

// DefaultConfig returns the saver defaults.
func DefaultConfig() Config {
	return Config{
		SaveTimeout: 10 * time.Second,
		MinBackoff:  500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		MaxAttempts: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = d.SaveTimeout
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = d.MinBackoff
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = d.MaxBackoff
		if c.MaxBackoff < c.MinBackoff {
			c.MaxBackoff = c.MinBackoff
		}
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Hooks are optional callbacks invoked from the worker goroutines.
type Hooks struct {
	// Fallback runs after the primary save gives up on a snapshot.
	Fallback SaveFunc
	// OnDegraded reports a snapshot the primary store could not take.
	OnDegraded func(id domain.AccountID, err error)
	// OnSaved reports a snapshot the primary store accepted.
	OnSaved func(id domain.AccountID)
}

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("persist: saver closed")

// Saver serialises saves per account. Schedule replaces any queued snapshot,
// a save in flight is never interleaved with another for the same account,
// and a retry loop is abandoned as soon as a newer snapshot is queued.
type Saver struct {
	primary SaveFunc
	hooks   Hooks
	cfg     Config
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[domain.AccountID]*queue
	busy   int
	idle   chan struct{}
	closed bool
}

type queue struct {
	pending *domain.AccountState
	running bool
	wake    chan struct{}
}

// NewSaver creates a Saver around primary.
func NewSaver(primary SaveFunc, hooks Hooks, cfg Config, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Saver{
		primary: primary,
		hooks:   hooks,
		cfg:     cfg.withDefaults(),
		logger:  logger.With(slog.String("component", "saver")),
		ctx:     ctx,
		cancel:  cancel,
		queues:  make(map[domain.AccountID]*queue),
		idle:    idle,
	}
}

// Schedule queues state for saving, replacing any snapshot still waiting.
func (s *Saver) Schedule(state domain.AccountState) error {
	snap := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	q, ok := s.queues[snap.ID]
	if !ok {
		q = &queue{wake: make(chan struct{}, 1)}
		s.queues[snap.ID] = q
		s.wg.Add(1)
		go s.run(snap.ID, q)
	}

	if q.pending == nil && !q.running {
		s.markBusyLocked()
	}
	q.pending = &snap

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush blocks until no save is queued or in flight, or ctx ends.
func (s *Saver) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.busy == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting snapshots, drains what is queued within ctx and
// stops the workers.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.Flush(ctx)
	s.cancel()
	s.wg.Wait()
	return err
}

func (s *Saver) markBusyLocked() {
	if s.busy == 0 {
		s.idle = make(chan struct{})
	}
	s.busy++
}

func (s *Saver) markIdleLocked() {
	s.busy--
	if s.busy == 0 {
		close(s.idle)
	}
}

func (s *Saver) run(id domain.AccountID, q *queue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		snap := q.pending
		q.pending = nil
		q.running = snap != nil
		if snap != nil {
			select {
			case <-q.wake:
			default:
			}
		}
		s.mu.Unlock()

		if snap == nil {
			select {
			case <-q.wake:
				continue
			case <-s.ctx.Done():
				return
			}
		}

		s.saveWithRetry(id, q, *snap)

		s.mu.Lock()
		q.running = false
		if q.pending == nil {
			s.markIdleLocked()
		}
		s.mu.Unlock()
	}
}

func (s *Saver) newerQueued(q *queue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return q.pending != nil
}

func (s *Saver) saveWithRetry(id domain.AccountID, q *queue, snap domain.AccountState) {
	b := &backoff.Backoff{
		Min:    s.cfg.MinBackoff,
		Max:    s.cfg.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SaveTimeout)
		lastErr = s.primary(ctx, snap)
		cancel()
		if lastErr == nil {
			if attempt > 1 {
				s.logger.InfoContext(s.ctx, "saver: recovered",
					slog.String("account", string(id)),
					slog.Int("attempt", attempt),
				)
			}
			if s.hooks.OnSaved != nil {
				s.hooks.OnSaved(id)
			}
			return
		}

		s.logger.WarnContext(s.ctx, "saver: save failed",
			slog.String("account", string(id)),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if s.newerQueued(q) {
			s.logger.DebugContext(s.ctx, "saver: superseded", slog.String("account", string(id)))
			return
		}
		if attempt == s.cfg.MaxAttempts || s.ctx.Err() != nil {
			break
		}

		wait := b.Duration()
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-q.wake:
			timer.Stop()
			if s.newerQueued(q) {
				s.logger.DebugContext(s.ctx, "saver: superseded", slog.String("account", string(id)))
				return
			}
		case <-s.ctx.Done():
			timer.Stop()
		}
	}

	s.degrade(id, snap, lastErr)
}

func (s *Saver) degrade(id domain.AccountID, snap domain.AccountState, err error) {
	if !errors.Is(err, domain.ErrPersistenceUnavailable) {
		err = errors.Join(domain.ErrPersistenceUnavailable, err)
	}
	s.logger.ErrorContext(s.ctx, "saver: giving up, using fallback",
		slog.String("account", string(id)),
		slog.String("error", err.Error()),
	)
	if s.hooks.Fallback != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
		if ferr := s.hooks.Fallback(ctx, snap); ferr != nil {
			s.logger.ErrorContext(ctx, "saver: fallback failed",
				slog.String("account", string(id)),
				slog.String("error", ferr.Error()),
			)
		}
		cancel()
	}
	if s.hooks.OnDegraded != nil {
		s.hooks.OnDegraded(id, err)
	}
}
