package persist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

func state(id domain.AccountID, target float64) domain.AccountState {
	return domain.AccountState{ID: id, TargetValue: target}
}

func fastConfig() Config {
	return Config{
		SaveTimeout: time.Second,
		MinBackoff:  5 * time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		MaxAttempts: 3,
	}
}

type recorder struct {
	mu    sync.Mutex
	saved []float64
}

func (r *recorder) add(v float64) {
	r.mu.Lock()
	r.saved = append(r.saved, v)
	r.mu.Unlock()
}

func (r *recorder) values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.saved...)
}

func TestLatestSnapshotWins(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var inFlight, maxInFlight atomic.Int32

	primary := func(ctx context.Context, st domain.AccountState) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		if st.TargetValue == 1 {
			started <- struct{}{}
			<-release
		}
		rec.add(st.TargetValue)
		return nil
	}

	s := NewSaver(primary, Hooks{}, fastConfig(), nil)
	defer s.Close(context.Background())

	require.NoError(t, s.Schedule(state(domain.AnchorAccount, 1)))
	<-started
	for v := 2.0; v <= 4; v++ {
		require.NoError(t, s.Schedule(state(domain.AnchorAccount, v)))
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, []float64{1, 4}, rec.values())
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestAccountsSaveIndependently(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	seen := map[domain.AccountID]float64{}
	primary := func(_ context.Context, st domain.AccountState) error {
		mu.Lock()
		seen[st.ID] = st.TargetValue
		mu.Unlock()
		return nil
	}
	s := NewSaver(primary, Hooks{}, fastConfig(), nil)

	require.NoError(t, s.Schedule(state(domain.AnchorAccount, 10)))
	require.NoError(t, s.Schedule(state(domain.RotatorAccount, 20)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, map[domain.AccountID]float64{
		domain.AnchorAccount:  10,
		domain.RotatorAccount: 20,
	}, seen)
	assert.ErrorIs(t, s.Schedule(state(domain.AnchorAccount, 1)), ErrClosed)
}

func TestRetriesThenFallsBack(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	primary := func(context.Context, domain.AccountState) error {
		attempts.Add(1)
		return errors.New("boom")
	}
	var fallback []float64
	var degraded error
	var mu sync.Mutex
	hooks := Hooks{
		Fallback: func(_ context.Context, st domain.AccountState) error {
			mu.Lock()
			fallback = append(fallback, st.TargetValue)
			mu.Unlock()
			return nil
		},
		OnDegraded: func(_ domain.AccountID, err error) {
			mu.Lock()
			degraded = err
			mu.Unlock()
		},
	}

	s := NewSaver(primary, hooks, fastConfig(), nil)
	require.NoError(t, s.Schedule(state(domain.AnchorAccount, 7)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, int32(3), attempts.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{7}, fallback)
	assert.ErrorIs(t, degraded, domain.ErrPersistenceUnavailable)
}

func TestRetryAbandonedForNewerSnapshot(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	failed := make(chan struct{}, 1)
	primary := func(_ context.Context, st domain.AccountState) error {
		rec.add(st.TargetValue)
		if st.TargetValue == 1 {
			select {
			case failed <- struct{}{}:
			default:
			}
			return errors.New("unavailable")
		}
		return nil
	}
	var fallbacks atomic.Int32
	cfg := fastConfig()
	cfg.MinBackoff = time.Second
	cfg.MaxBackoff = time.Second
	cfg.MaxAttempts = 10

	s := NewSaver(primary, Hooks{
		Fallback: func(context.Context, domain.AccountState) error {
			fallbacks.Add(1)
			return nil
		},
	}, cfg, nil)
	defer s.Close(context.Background())

	require.NoError(t, s.Schedule(state(domain.AnchorAccount, 1)))
	<-failed
	require.NoError(t, s.Schedule(state(domain.AnchorAccount, 2)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, []float64{1, 2}, rec.values())
	assert.Zero(t, fallbacks.Load())
}

func TestFlushHonoursContext(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	s := NewSaver(func(ctx context.Context, _ domain.AccountState) error {
		<-release
		return nil
	}, Hooks{}, fastConfig(), nil)

	require.NoError(t, s.Schedule(state(domain.AnchorAccount, 1)))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, s.Close(context.Background()))
}

func TestScheduleCopiesState(t *testing.T) {
	t.Parallel()
	got := make(chan domain.AccountState, 1)
	s := NewSaver(func(_ context.Context, st domain.AccountState) error {
		got <- st
		return nil
	}, Hooks{}, fastConfig(), nil)
	defer s.Close(context.Background())

	st := domain.AccountState{ID: domain.AnchorAccount, Positions: []domain.Position{{Symbol: "SUI", Units: 1}}}
	require.NoError(t, s.Schedule(st))
	st.Positions[0].Units = 99

	saved := <-got
	assert.Equal(t, 1.0, saved.Positions[0].Units)
}
