// File: internal/orchestrator/orchestrator.go

// Package orchestrator is the composition root of the runtime. It wires the
// frame source, detector, cache, locator and executor together, owns the
// background detection loop, and turns scenarios into scheduler sessions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uipilot/api/schemas"
	"github.com/xkilldash9x/uipilot/internal/capture"
	"github.com/xkilldash9x/uipilot/internal/config"
	"github.com/xkilldash9x/uipilot/internal/detector"
	"github.com/xkilldash9x/uipilot/internal/executor"
	"github.com/xkilldash9x/uipilot/internal/injector"
	"github.com/xkilldash9x/uipilot/internal/locator"
	"github.com/xkilldash9x/uipilot/internal/scenario"
	"github.com/xkilldash9x/uipilot/internal/scheduler"
	"github.com/xkilldash9x/uipilot/internal/store"
	"github.com/xkilldash9x/uipilot/internal/vision"
)

type options struct {
	source   schemas.FrameSource
	detector schemas.Detector
	injector schemas.Injector
	history  *store.Store
}

// Option overrides one of the runtime's collaborators at construction.
type Option func(*options)

// WithFrameSource substitutes the configured frame source.
func WithFrameSource(s schemas.FrameSource) Option {
	return func(o *options) { o.source = s }
}

// WithDetector substitutes the remote detector client.
func WithDetector(d schemas.Detector) Option {
	return func(o *options) { o.detector = d }
}

// WithInjector substitutes the input backend. Without this the runtime
// uses the dry-run injector, which only logs.
func WithInjector(i schemas.Injector) Option {
	return func(o *options) { o.injector = i }
}

// WithHistory attaches a session history store. Finished sessions are
// persisted with their task stats.
func WithHistory(h *store.Store) Option {
	return func(o *options) { o.history = h }
}

// Runtime holds the assembled perception and action stack for one
// automation session's lifetime.
type Runtime struct {
	id     uuid.UUID
	cfg    *config.Config
	logger *zap.Logger

	region   schemas.Region
	source   schemas.FrameSource
	cache    *vision.Cache
	pipeline *vision.Pipeline
	loop     *vision.Loop // nil in on-demand mode
	locator  *locator.Locator
	executor *executor.Executor
	history  *store.Store

	closeOnce sync.Once
	closeErr  error
}

// New assembles a runtime from config. In background mode the detection
// loop starts immediately and keeps the cache fresh until Close.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	region := schemas.Region{
		X: cfg.Capture.X,
		Y: cfg.Capture.Y,
		W: cfg.Capture.W,
		H: cfg.Capture.H,
	}

	source := o.source
	if source == nil {
		if cfg.Capture.ReplayDir == "" {
			return nil, fmt.Errorf("no frame source: set capture.replay_dir or inject one")
		}
		replay, err := capture.NewReplaySource(cfg.Capture.ReplayDir, true, logger)
		if err != nil {
			return nil, err
		}
		source = replay
	}

	det := o.detector
	if det == nil {
		det = detector.NewClient(cfg.Detector, logger)
	}

	inj := o.injector
	if inj == nil {
		inj = injector.NewDryRun(logger)
	}

	cache := vision.NewCache(cfg.Detection.MemoryTimeout)
	pipeline := vision.NewPipeline(source, det, cache, region, cfg.Detection.Confidence, logger)

	r := &Runtime{
		id:       uuid.New(),
		cfg:      cfg,
		logger:   logger.Named("runtime"),
		region:   region,
		source:   source,
		cache:    cache,
		pipeline: pipeline,
		executor: executor.New(inj, region, cfg.Executor, logger),
		history:  o.history,
	}

	if cfg.Detection.Background {
		r.loop = vision.NewLoop(pipeline, cfg.Detection.Interval, logger)
		r.locator = locator.New(cache, nil, cfg.Detection.Confidence, cfg.Locator, logger)
		r.loop.Start()
	} else {
		r.locator = locator.New(cache, pipeline, cfg.Detection.Confidence, cfg.Locator, logger)
	}

	r.logger.Info("Runtime assembled",
		zap.String("id", r.id.String()),
		zap.Bool("background", cfg.Detection.Background),
		zap.Bool("history", r.history != nil))
	return r, nil
}

// ID returns the runtime identifier.
func (r *Runtime) ID() uuid.UUID { return r.id }

// Locator exposes the element locator.
func (r *Runtime) Locator() *locator.Locator { return r.locator }

// Executor exposes the action executor.
func (r *Runtime) Executor() *executor.Executor { return r.executor }

// automation bundles the locator and executor method sets into the
// capability surface playbooks consume.
type automation struct {
	*locator.Locator
	*executor.Executor
}

// Automation returns the capability surface for scenario playbooks.
func (r *Runtime) Automation() scenario.Automation {
	return automation{r.locator, r.executor}
}

// Snapshot returns the current cache contents grouped by label. In
// on-demand mode it runs one detection cycle first; in background mode
// the loop has been filling the cache since construction.
func (r *Runtime) Snapshot(ctx context.Context) (map[string][]schemas.Detection, error) {
	if r.loop == nil {
		if err := r.pipeline.RunCycle(ctx, 0); err != nil {
			return nil, err
		}
	}
	out := make(map[string][]schemas.Detection)
	for _, label := range r.cache.Labels() {
		if matches := r.cache.Query(label, 0); len(matches) > 0 {
			out[label] = matches
		}
	}
	return out, nil
}

// RunScenario turns a scenario into a scheduler session, runs it to its
// terminal state and persists the outcome when a history store is
// attached. The returned session carries state and per-task stats.
func (r *Runtime) RunScenario(ctx context.Context, sc scenario.Scenario) (*scheduler.Session, error) {
	var opts []scheduler.Option
	if sc.Duration > 0 {
		opts = append(opts, scheduler.WithDuration(sc.Duration))
	}

	session, err := scheduler.NewSession(sc.Name, sc.Tasks, r.logger, opts...)
	if err != nil {
		return nil, err
	}

	// A dead detection loop would otherwise only show up as staleness
	// driven lookup failures; watch it and abort the session promptly.
	runCtx := ctx
	if r.loop != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-r.loop.Done():
				cancel()
			case <-runCtx.Done():
			}
		}()
	}

	runErr := session.Run(runCtx)
	if runErr == nil && r.loop != nil {
		if loopErr := r.loop.Err(); loopErr != nil {
			runErr = fmt.Errorf("detection loop halted: %w", loopErr)
		}
	}

	if r.history != nil {
		if saveErr := r.saveSession(session); saveErr != nil {
			r.logger.Error("Failed to persist session history", zap.Error(saveErr))
		}
	}
	return session, runErr
}

// RunScenarios drives several scenarios at once, one session each. The
// executor's mutex keeps their inputs serialized, so concurrent sessions
// interleave actions rather than fight over the mouse. The first fatal
// session error cancels the rest.
func (r *Runtime) RunScenarios(ctx context.Context, scs ...scenario.Scenario) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sc := range scs {
		g.Go(func() error {
			_, err := r.RunScenario(ctx, sc)
			return err
		})
	}
	return g.Wait()
}

// saveSession writes the finished session to the history store. The run's
// context may already be cancelled, so persistence gets its own deadline.
func (r *Runtime) saveSession(session *scheduler.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := store.SessionRecord{
		ID:         session.ID().String(),
		Scenario:   session.Name(),
		State:      session.State().String(),
		StartedAt:  session.Started(),
		FinishedAt: time.Now(),
	}
	if err := session.Err(); err != nil {
		rec.Error = err.Error()
	}
	for _, st := range session.Stats() {
		rec.Tasks = append(rec.Tasks, store.TaskRecord{
			Name:     st.Name,
			Interval: st.Interval,
			Fired:    st.Fired,
		})
	}
	return r.history.SaveSession(ctx, rec)
}

// Close releases the detection loop and the frame source. Safe to call
// more than once; later calls return the first result.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		if r.loop != nil {
			if err := r.loop.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("detection loop: %w", err))
			}
		}
		if err := r.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("frame source: %w", err))
		}
		r.closeErr = errors.Join(errs...)
		r.logger.Info("Runtime closed", zap.Error(r.closeErr))
	})
	return r.closeErr
}
