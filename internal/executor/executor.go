// File: internal/executor/executor.go
// Description: Translates located elements or explicit coordinates into input
// operations, under a global cooldown, a retry budget and optional safety
// gating. Exactly one input operation executes at any instant system-wide.

package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/uipilot/api/schemas"
	"github.com/xkilldash9x/uipilot/internal/config"
)

// Executor issues input operations through an injector.
type Executor struct {
	injector schemas.Injector
	// limiter enforces the cooldown: one token per cooldown window, so the
	// wait before the next action is exactly the remaining spacing.
	limiter      *rate.Limiter
	maxRetries   int
	retryDelay   time.Duration
	dragDuration time.Duration
	dragSteps    int
	safetyChecks bool
	region       schemas.Region
	logger       *zap.Logger

	// mu serializes every input-issuing operation, held for the duration of
	// one action including its cooldown wait.
	mu sync.Mutex
}

// New creates an executor bound to an injector and the configured capture
// region (used for out-of-bounds rejection when safety checks are on).
func New(injector schemas.Injector, region schemas.Region, cfg config.ExecutorConfig, logger *zap.Logger) *Executor {
	limit := rate.Inf
	if cfg.Cooldown > 0 {
		limit = rate.Every(cfg.Cooldown)
	}
	return &Executor{
		injector:     injector,
		limiter:      rate.NewLimiter(limit, 1),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		dragDuration: cfg.DragDuration,
		dragSteps:    cfg.DragSteps,
		safetyChecks: cfg.SafetyChecks,
		region:       region,
		logger:       logger.Named("executor"),
	}
}

// Perform executes one action request, blocking for the cooldown window and
// retrying failed attempts up to the configured budget. Safety violations are
// reported before any input is issued.
func (e *Executor) Perform(ctx context.Context, req schemas.ActionRequest) error {
	points, err := e.resolve(req)
	if err != nil {
		return err
	}
	if err := e.checkSafety(req, points); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Cooldown: block until the spacing since the last action is satisfied.
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("cooldown wait aborted: %w", err)
	}

	var last error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if err := e.issue(ctx, req, points); err != nil {
			last = err
			e.logger.Warn("Action attempt failed",
				zap.String("kind", string(req.Kind)),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", e.maxRetries),
				zap.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt < e.maxRetries {
				if err := sleep(ctx, e.retryDelay); err != nil {
					return err
				}
			}
			continue
		}
		e.logger.Debug("Action performed",
			zap.String("kind", string(req.Kind)),
			zap.Int("attempt", attempt))
		return nil
	}

	return &schemas.ActionError{Kind: req.Kind, Attempts: e.maxRetries, Last: last}
}

// Click presses and releases the left button on the target.
func (e *Executor) Click(ctx context.Context, target schemas.Detection, offset schemas.Offset) error {
	return e.Perform(ctx, schemas.ActionRequest{Kind: schemas.ActionClick, Target: &target, Offset: offset})
}

// ClickAt clicks explicit coordinates.
func (e *Executor) ClickAt(ctx context.Context, p schemas.Point) error {
	return e.Perform(ctx, schemas.ActionRequest{Kind: schemas.ActionClick, Point: &p})
}

// DoubleClick issues two rapid clicks on the target, the usual gesture for
// equipping or consuming an item.
func (e *Executor) DoubleClick(ctx context.Context, target schemas.Detection) error {
	return e.Perform(ctx, schemas.ActionRequest{Kind: schemas.ActionDoubleClick, Target: &target})
}

// RightClick opens the context interaction on the target.
func (e *Executor) RightClick(ctx context.Context, target schemas.Detection) error {
	return e.Perform(ctx, schemas.ActionRequest{Kind: schemas.ActionRightClick, Target: &target})
}

// Drag moves an element onto another with a press-move-release sequence.
func (e *Executor) Drag(ctx context.Context, from, to schemas.Detection) error {
	return e.Perform(ctx, schemas.ActionRequest{Kind: schemas.ActionDrag, Target: &from, To: &to})
}

// PressKey taps a keyboard key.
func (e *Executor) PressKey(ctx context.Context, key string) error {
	return e.Perform(ctx, schemas.ActionRequest{Kind: schemas.ActionKeyPress, Key: key})
}

// HoldKey keeps a key down for the given duration.
func (e *Executor) HoldKey(ctx context.Context, key string, d time.Duration) error {
	return e.Perform(ctx, schemas.ActionRequest{Kind: schemas.ActionKeyHold, Key: key, HoldFor: d})
}

// resolved carries the screen points an action operates on.
type resolved struct {
	at *schemas.Point
	to *schemas.Point
}

// resolve turns the request's target into concrete screen points: the
// bounding-box center plus the caller-supplied offset, or the explicit
// coordinates as given.
func (e *Executor) resolve(req schemas.ActionRequest) (resolved, error) {
	var r resolved

	switch req.Kind {
	case schemas.ActionKeyPress, schemas.ActionKeyHold:
		if req.Key == "" {
			return r, fmt.Errorf("%s requires a key", req.Kind)
		}
		return r, nil
	}

	switch {
	case req.Target != nil:
		p := req.Target.Center()
		p.X += req.Offset.DX
		p.Y += req.Offset.DY
		r.at = &p
	case req.Point != nil:
		p := *req.Point
		p.X += req.Offset.DX
		p.Y += req.Offset.DY
		r.at = &p
	default:
		return r, fmt.Errorf("%s requires a target detection or explicit coordinates", req.Kind)
	}

	if req.Kind == schemas.ActionDrag {
		switch {
		case req.To != nil:
			p := req.To.Center()
			r.to = &p
		case req.ToPoint != nil:
			p := *req.ToPoint
			r.to = &p
		default:
			return r, fmt.Errorf("drag requires a destination")
		}
	}
	return r, nil
}

// checkSafety enforces the destructive-action gate and the capture-region
// bound. Both checks run before any input reaches the injector.
func (e *Executor) checkSafety(req schemas.ActionRequest, points resolved) error {
	if !e.safetyChecks {
		return nil
	}
	if req.Destructive && !req.Confirmed {
		e.logger.Warn("Destructive action blocked; caller did not confirm",
			zap.String("kind", string(req.Kind)))
		return fmt.Errorf("unconfirmed destructive %s: %w", req.Kind, schemas.ErrSafetyViolation)
	}
	for _, p := range []*schemas.Point{points.at, points.to} {
		if p != nil && !e.region.Contains(*p) {
			e.logger.Warn("Coordinates outside capture region rejected",
				zap.Float64("x", p.X), zap.Float64("y", p.Y))
			return fmt.Errorf("coordinates (%.0f, %.0f) outside capture region: %w",
				p.X, p.Y, schemas.ErrSafetyViolation)
		}
	}
	return nil
}

// issue performs one attempt of the request against the injector.
func (e *Executor) issue(ctx context.Context, req schemas.ActionRequest, points resolved) error {
	switch req.Kind {
	case schemas.ActionClick:
		return e.clickOnce(ctx, *points.at, schemas.ButtonLeft)
	case schemas.ActionDoubleClick:
		if err := e.clickOnce(ctx, *points.at, schemas.ButtonLeft); err != nil {
			return err
		}
		if err := sleep(ctx, 50*time.Millisecond); err != nil {
			return err
		}
		return e.pressReleaseButton(ctx, schemas.ButtonLeft)
	case schemas.ActionRightClick:
		return e.clickOnce(ctx, *points.at, schemas.ButtonRight)
	case schemas.ActionDrag:
		return e.dragOnce(ctx, *points.at, *points.to)
	case schemas.ActionKeyPress:
		if err := e.injector.KeyDown(ctx, req.Key); err != nil {
			return err
		}
		return e.injector.KeyUp(ctx, req.Key)
	case schemas.ActionKeyHold:
		if err := e.injector.KeyDown(ctx, req.Key); err != nil {
			return err
		}
		if err := sleep(ctx, req.HoldFor); err != nil {
			// Never leave the key held down.
			_ = e.injector.KeyUp(ctx, req.Key)
			return err
		}
		return e.injector.KeyUp(ctx, req.Key)
	default:
		return fmt.Errorf("unsupported action kind %q", req.Kind)
	}
}

func (e *Executor) clickOnce(ctx context.Context, p schemas.Point, b schemas.MouseButton) error {
	if err := e.injector.MoveTo(ctx, p); err != nil {
		return err
	}
	return e.pressReleaseButton(ctx, b)
}

func (e *Executor) pressReleaseButton(ctx context.Context, b schemas.MouseButton) error {
	if err := e.injector.ButtonDown(ctx, b); err != nil {
		return err
	}
	return e.injector.ButtonUp(ctx, b)
}

// dragOnce composes press, interpolated moves over the configured duration,
// and release between the two resolved points.
func (e *Executor) dragOnce(ctx context.Context, from, to schemas.Point) error {
	if err := e.injector.MoveTo(ctx, from); err != nil {
		return err
	}
	if err := e.injector.ButtonDown(ctx, schemas.ButtonLeft); err != nil {
		return err
	}

	step := e.dragDuration / time.Duration(e.dragSteps)
	for i := 1; i <= e.dragSteps; i++ {
		t := float64(i) / float64(e.dragSteps)
		p := schemas.Point{
			X: from.X + (to.X-from.X)*t,
			Y: from.Y + (to.Y-from.Y)*t,
		}
		if err := e.injector.MoveTo(ctx, p); err != nil {
			// Drop what we grabbed before reporting the failure.
			_ = e.injector.ButtonUp(ctx, schemas.ButtonLeft)
			return err
		}
		if err := sleep(ctx, step); err != nil {
			_ = e.injector.ButtonUp(ctx, schemas.ButtonLeft)
			return err
		}
	}

	return e.injector.ButtonUp(ctx, schemas.ButtonLeft)
}

// sleep waits for d, returning early if the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
