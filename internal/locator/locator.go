// File: internal/locator/locator.go
// Description: Resolves named UI elements against the detection cache, with
// blocking wait/retry semantics. With background detection disabled the
// locator runs a synchronous detection cycle before each read.

package locator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
	"github.com/xkilldash9x/uipilot/internal/config"
	"github.com/xkilldash9x/uipilot/internal/vision"
)

// Locator answers element queries from the detection cache.
type Locator struct {
	cache *vision.Cache
	// pipeline is nil in background mode; set, the locator refreshes the
	// cache itself on every query. The two modes are selected once per
	// session and never mixed.
	pipeline      *vision.Pipeline
	minConfidence float64
	waitTimeout   time.Duration
	pollInterval  time.Duration
	logger        *zap.Logger
}

// New creates a locator. Pass a nil pipeline when a background loop keeps the
// cache fresh.
func New(
	cache *vision.Cache,
	pipeline *vision.Pipeline,
	defaultConfidence float64,
	cfg config.LocatorConfig,
	logger *zap.Logger,
) *Locator {
	return &Locator{
		cache:         cache,
		pipeline:      pipeline,
		minConfidence: defaultConfidence,
		waitTimeout:   cfg.WaitTimeout,
		pollInterval:  cfg.PollInterval,
		logger:        logger.Named("locator"),
	}
}

// floor returns the confidence floor for a query, falling back to the
// session default.
func (l *Locator) floor(q schemas.ElementQuery) float64 {
	if q.Confidence > 0 {
		return q.Confidence
	}
	return l.minConfidence
}

// refresh runs an on-demand detection cycle when background mode is off.
func (l *Locator) refresh(ctx context.Context, q schemas.ElementQuery) error {
	if l.pipeline == nil {
		return nil
	}
	return l.pipeline.RunCycle(ctx, l.floor(q))
}

// FindElement returns the single best fresh detection for the query, or nil
// when nothing matches. Aside from the on-demand detection cycle, it has no
// side effects.
func (l *Locator) FindElement(ctx context.Context, q schemas.ElementQuery) (*schemas.Detection, error) {
	if err := l.refresh(ctx, q); err != nil {
		return nil, err
	}
	matches := l.cache.Query(q.Label, l.floor(q))
	if len(matches) == 0 {
		return nil, nil
	}
	best := matches[0]
	return &best, nil
}

// FindAllElements returns every fresh detection for the query, best first.
func (l *Locator) FindAllElements(ctx context.Context, q schemas.ElementQuery) ([]schemas.Detection, error) {
	if err := l.refresh(ctx, q); err != nil {
		return nil, err
	}
	return l.cache.Query(q.Label, l.floor(q)), nil
}

// IsElementPresent reports whether the element is currently on screen. It is
// read-only with respect to the cache, exactly like FindElement.
func (l *Locator) IsElementPresent(ctx context.Context, q schemas.ElementQuery) (bool, error) {
	d, err := l.FindElement(ctx, q)
	if err != nil {
		return false, err
	}
	return d != nil, nil
}

// WaitForElement polls FindElement every pollInterval until the element
// appears or timeout elapses, both measured on the monotonic clock. Zero
// timeout or interval selects the configured defaults. Transient detection
// errors during individual polls are logged and absorbed; only the deadline
// is fatal to the wait, surfacing ErrElementNotFound.
func (l *Locator) WaitForElement(ctx context.Context, q schemas.ElementQuery, timeout, pollInterval time.Duration) (*schemas.Detection, error) {
	if timeout <= 0 {
		timeout = l.waitTimeout
	}
	if pollInterval <= 0 {
		pollInterval = l.pollInterval
	}

	start := time.Now()
	deadline := start.Add(timeout)

	for {
		d, err := l.FindElement(ctx, q)
		if err != nil {
			l.logger.Debug("Poll attempt failed; continuing until deadline",
				zap.String("label", q.Label), zap.Error(err))
		} else if d != nil {
			l.logger.Debug("Element appeared",
				zap.String("label", q.Label),
				zap.Duration("after", time.Since(start)))
			return d, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		sleep := pollInterval
		if sleep > remaining {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %q: %w", q.Label, ctx.Err())
		case <-time.After(sleep):
		}
	}

	l.logger.Warn("Timed out waiting for element",
		zap.String("label", q.Label), zap.Duration("timeout", timeout))
	return nil, &schemas.NotFoundError{Label: q.Label, Waited: time.Since(start)}
}
