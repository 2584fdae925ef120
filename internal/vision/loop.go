// File: internal/vision/loop.go
package vision

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Loop continuously runs detection cycles on its own schedule and feeds the
// cache. It owns its goroutine and stop channel, and is joined
// deterministically by Stop. A loop stops itself on the first collaborator
// failure; the recorded error is reported by Stop.
type Loop struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *zap.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once

	mu  sync.Mutex
	err error
}

// NewLoop creates a background detection loop over the given pipeline.
func NewLoop(pipeline *Pipeline, interval time.Duration, logger *zap.Logger) *Loop {
	return &Loop{
		pipeline: pipeline,
		interval: interval,
		logger:   logger.Named("detection_loop"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. Subsequent calls are no-ops.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		l.logger.Info("Starting background detection", zap.Duration("interval", l.interval))
		l.started.Store(true)
		go l.run()
	})
}

// Done is closed when the loop goroutine exits, whether stopped or
// halted by a failure. Callers watching long-running work can use it
// to react to a dead loop without polling.
func (l *Loop) Done() <-chan struct{} { return l.doneCh }

// Err reports the collaborator error that halted the loop, nil while
// it is healthy or after a clean stop.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Stop signals the loop and waits for the in-flight cycle to finish. It
// returns the collaborator error that halted the loop early, if any.
func (l *Loop) Stop() error {
	if !l.started.Load() {
		return nil
	}
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	<-l.doneCh

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loop) run() {
	defer close(l.doneCh)

	for {
		// The stop flag is checked at the top of each cycle; a cycle in
		// flight is never preempted mid-detection.
		select {
		case <-l.stopCh:
			l.logger.Info("Background detection stopped")
			return
		default:
		}

		if err := l.pipeline.RunCycle(context.Background(), 0); err != nil {
			l.logger.Error("Detection cycle failed; stopping loop", zap.Error(err))
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
			return
		}

		select {
		case <-l.stopCh:
			l.logger.Info("Background detection stopped")
			return
		case <-time.After(l.interval):
		}
	}
}
