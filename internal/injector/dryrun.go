// File: internal/injector/dryrun.go

// Package injector provides input backends for the action executor.
// The dry-run injector records and logs every primitive instead of
// touching the operating system, so scenarios can be rehearsed safely.
package injector

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// DryRun logs input primitives without delivering them. It keeps an
// ordered trace so callers can inspect what would have happened.
type DryRun struct {
	mu     sync.Mutex
	trace  []string
	logger *zap.Logger
}

var _ schemas.Injector = (*DryRun)(nil)

func NewDryRun(logger *zap.Logger) *DryRun {
	return &DryRun{logger: logger.Named("injector.dryrun")}
}

func (d *DryRun) record(ctx context.Context, op string, fields ...zap.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.trace = append(d.trace, op)
	d.mu.Unlock()
	d.logger.Info("Suppressed input event", append([]zap.Field{zap.String("op", op)}, fields...)...)
	return nil
}

func (d *DryRun) MoveTo(ctx context.Context, p schemas.Point) error {
	return d.record(ctx, "move", zap.Float64("x", p.X), zap.Float64("y", p.Y))
}

func (d *DryRun) ButtonDown(ctx context.Context, b schemas.MouseButton) error {
	return d.record(ctx, "button_down", zap.String("button", string(b)))
}

func (d *DryRun) ButtonUp(ctx context.Context, b schemas.MouseButton) error {
	return d.record(ctx, "button_up", zap.String("button", string(b)))
}

func (d *DryRun) KeyDown(ctx context.Context, key string) error {
	return d.record(ctx, "key_down", zap.String("key", key))
}

func (d *DryRun) KeyUp(ctx context.Context, key string) error {
	return d.record(ctx, "key_up", zap.String("key", key))
}

// Trace returns a copy of the recorded primitive names in order.
func (d *DryRun) Trace() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.trace))
	copy(out, d.trace)
	return out
}
