// File: internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

func countingTask(name string, interval time.Duration, count *atomic.Int64) Task {
	return Task{
		Name:     name,
		Interval: interval,
		Run: func(ctx context.Context) error {
			count.Add(1)
			return nil
		},
	}
}

func TestSessionValidation(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewSession("empty", nil, logger)
	assert.Error(t, err)

	_, err = NewSession("bad-interval", []Task{{Name: "x", Interval: 0, Run: func(ctx context.Context) error { return nil }}}, logger)
	assert.Error(t, err)

	_, err = NewSession("no-callback", []Task{{Name: "x", Interval: time.Second}}, logger)
	assert.Error(t, err)
}

func TestSessionCompletesAfterDuration(t *testing.T) {
	defer goleak.VerifyNone(t)

	var fired atomic.Int64
	s, err := NewSession("timed", []Task{countingTask("tick", 10*time.Millisecond, &fired)},
		zap.NewNop(), WithDuration(105*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())

	start := time.Now()
	require.NoError(t, s.Run(context.Background()))
	elapsed := time.Since(start)

	assert.Equal(t, StateCompleted, s.State())
	assert.GreaterOrEqual(t, elapsed, 105*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
	// Roughly every 10ms over 105ms; allow scheduling slack.
	assert.InDelta(t, 10, fired.Load(), 4)
}

func TestSchedulerCadenceAcrossIntervals(t *testing.T) {
	// Fast task and slow task sharing one session: the slow one fires
	// exactly once before the duration elapses.
	var fast, slow atomic.Int64
	s, err := NewSession("cadence", []Task{
		countingTask("fast", 5*time.Millisecond, &fast),
		countingTask("slow", 600*time.Millisecond, &slow),
	}, zap.NewNop(), WithDuration(620*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, int64(1), slow.Load())
	assert.Greater(t, fast.Load(), int64(60))

	stats := s.Stats()
	require.Len(t, stats, 2)
	byName := map[string]TaskStats{}
	for _, st := range stats {
		byName[st.Name] = st
	}
	assert.Equal(t, 1, byName["slow"].Fired)
	assert.EqualValues(t, fast.Load(), byName["fast"].Fired)
}

func TestSessionCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	var fired atomic.Int64
	s, err := NewSession("cancellable", []Task{countingTask("tick", 10*time.Millisecond, &fired)}, zap.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	s.Cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateCancelled, s.State())

	// No task executes once the session has left Running.
	settled := fired.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, fired.Load())
}

func TestSessionContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	var fired atomic.Int64
	s, err := NewSession("ctx", []Task{countingTask("tick", 10*time.Millisecond, &fired)}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, StateCancelled, s.State())
}

func TestFatalTaskErrorFailsSession(t *testing.T) {
	boom := errors.New("collaborator exploded")
	s, err := NewSession("fatal", []Task{{
		Name:     "bad",
		Interval: 5 * time.Millisecond,
		Run:      func(ctx context.Context) error { return boom },
	}}, zap.NewNop())
	require.NoError(t, err)

	runErr := s.Run(context.Background())
	require.ErrorIs(t, runErr, boom)
	assert.Equal(t, StateFailed, s.State())
	assert.ErrorIs(t, s.Err(), boom)
}

func TestRecoverableTaskErrorsAreAbsorbed(t *testing.T) {
	var calls atomic.Int64
	s, err := NewSession("resilient", []Task{{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			calls.Add(1)
			return fmt.Errorf("target drifted away: %w", schemas.ErrElementNotFound)
		},
	}}, zap.NewNop(), WithDuration(60*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, StateCompleted, s.State())
	assert.Greater(t, calls.Load(), int64(3))
}

func TestSessionIsSingleUse(t *testing.T) {
	s, err := NewSession("single", []Task{countingTask("tick", 5*time.Millisecond, &atomic.Int64{})},
		zap.NewNop(), WithDuration(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	assert.Error(t, s.Run(context.Background()))
}

func TestTasksShareOneSessionWithoutInterleaving(t *testing.T) {
	// Two tasks with the same cadence never run concurrently; the loop
	// executes callbacks one at a time.
	var mu sync.Mutex
	running := 0
	overlapped := false

	makeTask := func(name string) Task {
		return Task{
			Name:     name,
			Interval: 5 * time.Millisecond,
			Run: func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > 1 {
					overlapped = true
				}
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			},
		}
	}

	s, err := NewSession("pair", []Task{makeTask("a"), makeTask("b")},
		zap.NewNop(), WithDuration(80*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, overlapped)
}
