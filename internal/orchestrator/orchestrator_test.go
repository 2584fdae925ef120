// File: internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
	"github.com/xkilldash9x/uipilot/internal/config"
	"github.com/xkilldash9x/uipilot/internal/injector"
	"github.com/xkilldash9x/uipilot/internal/scenario"
	"github.com/xkilldash9x/uipilot/internal/scheduler"
	"github.com/xkilldash9x/uipilot/internal/store"
)

type fakeSource struct {
	closed atomic.Bool
}

func (s *fakeSource) Capture(ctx context.Context, region schemas.Region) (schemas.Frame, error) {
	return schemas.Frame{
		Image:      image.NewRGBA(image.Rect(0, 0, region.W, region.H)),
		Region:     region,
		CapturedAt: time.Now(),
	}, nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeDetector struct {
	labels []string
}

func (d *fakeDetector) Detect(ctx context.Context, frame schemas.Frame, minConfidence float64) ([]schemas.Detection, error) {
	out := make([]schemas.Detection, 0, len(d.labels))
	for i, label := range d.labels {
		out = append(out, schemas.Detection{
			Label:      label,
			Confidence: 0.9,
			Box:        schemas.Box{X: float64(20 * (i + 1)), Y: 30, W: 10, H: 10},
			ObservedAt: frame.CapturedAt,
		})
	}
	return out, nil
}

// failingDetector succeeds once, then fails every later cycle.
type failingDetector struct {
	calls atomic.Int64
}

func (d *failingDetector) Detect(ctx context.Context, frame schemas.Frame, minConfidence float64) ([]schemas.Detection, error) {
	if d.calls.Add(1) > 1 {
		return nil, errors.New("model crashed")
	}
	return nil, nil
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Capture.W = 200
	cfg.Capture.H = 200
	cfg.Detection.Interval = 10 * time.Millisecond
	cfg.Locator.WaitTimeout = time.Second
	cfg.Locator.PollInterval = 10 * time.Millisecond
	cfg.Executor.Cooldown = 0
	cfg.Executor.RetryDelay = time.Millisecond
	return cfg
}

func newTestRuntime(t *testing.T, cfg *config.Config, extra ...Option) (*Runtime, *fakeSource, *injector.DryRun) {
	t.Helper()
	src := &fakeSource{}
	inj := injector.NewDryRun(zap.NewNop())
	opts := append([]Option{
		WithFrameSource(src),
		WithDetector(&fakeDetector{labels: []string{"target_button"}}),
		WithInjector(inj),
	}, extra...)

	rt, err := New(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt, src, inj
}

func TestNewRequiresAFrameSource(t *testing.T) {
	cfg := testConfig()
	_, err := New(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no frame source")
}

func TestBackgroundModeKeepsCacheFresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt, _, _ := newTestRuntime(t, testConfig())

	el, err := rt.Locator().WaitForElement(context.Background(),
		schemas.ElementQuery{Label: "target_button"}, time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "target_button", el.Label)

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}

func TestOnDemandModeDetectsPerQuery(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.Detection.Background = false
	rt, _, _ := newTestRuntime(t, cfg)

	el, err := rt.Locator().FindElement(context.Background(), schemas.ElementQuery{Label: "target_button"})
	require.NoError(t, err)
	require.NotNil(t, el)
}

func TestRunScenarioDrivesTasksThroughAutomation(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt, _, inj := newTestRuntime(t, testConfig())
	auto := rt.Automation()

	sc := scenario.Scenario{
		Name:     "click-target",
		Duration: 80 * time.Millisecond,
		Tasks: []scheduler.Task{{
			Name:     "click",
			Interval: 20 * time.Millisecond,
			Run: func(ctx context.Context) error {
				el, err := auto.WaitForElement(ctx, schemas.ElementQuery{Label: "target_button"},
					time.Second, 10*time.Millisecond)
				if err != nil {
					return err
				}
				return auto.Click(ctx, *el, schemas.Offset{})
			},
		}},
	}

	session, err := rt.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StateCompleted, session.State())

	stats := session.Stats()
	require.Len(t, stats, 1)
	assert.Greater(t, stats[0].Fired, 0)
	assert.NotEmpty(t, inj.Trace())
	require.NoError(t, rt.Close())
}

func TestRunScenariosInterleavesSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt, _, _ := newTestRuntime(t, testConfig())

	var a, b atomic.Int64
	mk := func(name string, n *atomic.Int64) scenario.Scenario {
		return scenario.Scenario{
			Name:     name,
			Duration: 60 * time.Millisecond,
			Tasks: []scheduler.Task{{
				Name:     "tick",
				Interval: 10 * time.Millisecond,
				Run: func(ctx context.Context) error {
					n.Add(1)
					return nil
				},
			}},
		}
	}

	require.NoError(t, rt.RunScenarios(context.Background(), mk("a", &a), mk("b", &b)))
	assert.Greater(t, a.Load(), int64(0))
	assert.Greater(t, b.Load(), int64(0))
	require.NoError(t, rt.Close())
}

func TestRunScenarioAbortsWhenDetectionLoopDies(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt, _, _ := newTestRuntime(t, testConfig(), WithDetector(&failingDetector{}))

	// Unbounded scenario; only the dying loop can end it.
	sc := scenario.Scenario{
		Name: "endless",
		Tasks: []scheduler.Task{{
			Name:     "tick",
			Interval: 10 * time.Millisecond,
			Run:      func(ctx context.Context) error { return nil },
		}},
	}

	_, err := rt.RunScenario(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detection loop halted")

	var srcErr *schemas.DetectionSourceError
	assert.ErrorAs(t, err, &srcErr)

	// Close reports the same halt.
	assert.Error(t, rt.Close())
}

func TestRunScenarioPersistsHistory(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing()
	history, err := store.New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	mockPool.ExpectBegin()
	mockPool.ExpectExec("INSERT INTO sessions").
		WithArgs(pgxmock.AnyArg(), "tick-once", "completed", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCopyFrom(pgx.Identifier{"session_tasks"},
		[]string{"session_id", "name", "interval_ms", "fired"}).
		WillReturnResult(1)
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	rt, _, _ := newTestRuntime(t, testConfig(), WithHistory(history))

	sc := scenario.Scenario{
		Name:     "tick-once",
		Duration: 30 * time.Millisecond,
		Tasks: []scheduler.Task{{
			Name:     "tick",
			Interval: 10 * time.Millisecond,
			Run:      func(ctx context.Context) error { return nil },
		}},
	}

	_, err = rt.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCloseReleasesTheFrameSource(t *testing.T) {
	rt, src, _ := newTestRuntime(t, testConfig())
	require.NoError(t, rt.Close())
	assert.True(t, src.closed.Load())
}
