// File: internal/scenario/gathering.go
package scenario

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
	"github.com/xkilldash9x/uipilot/internal/scheduler"
)

// resourceTools lists the usable harvesting tools per resource type,
// preferred tool first. The gatherer equips the first one present in
// the inventory.
var resourceTools = map[string][]string{
	"wood":    {"item_chainsaw", "item_metal_hatchet", "item_stone_hatchet"},
	"stone":   {"item_metal_pick", "item_stone_pick"},
	"metal":   {"item_metal_pick"},
	"flint":   {"item_metal_pick", "item_stone_pick"},
	"thatch":  {"item_metal_hatchet", "item_stone_hatchet"},
	"fiber":   {"item_sickle"},
	"berries": {"item_stone_pick"},
}

// moveKeys is the strafe rotation between swings, so harvesting covers
// nearby nodes instead of hammering one spot.
var moveKeys = [...]string{"w", "a", "s", "d"}

const (
	swingInterval  = 1500 * time.Millisecond
	weightInterval = 30 * time.Second
	moveHold       = 400 * time.Millisecond
)

// Gatherer harvests one resource type: it keeps the right tool
// equipped, swings at the aim point on a cadence and empties the
// inventory into a storage box when the encumbered alert shows.
type Gatherer struct {
	auto      Automation
	inventory *Inventory
	resource  string
	tools     []string
	aim       schemas.Point
	logger    *zap.Logger

	equipped atomic.Bool
	swings   atomic.Int64
	deposits atomic.Int64
}

// NewGatherer builds a gatherer for a known resource type. The aim
// point is where harvest swings land, usually the crosshair.
func NewGatherer(auto Automation, resource string, aim schemas.Point, logger *zap.Logger) (*Gatherer, error) {
	tools, ok := resourceTools[resource]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", resource)
	}
	return &Gatherer{
		auto:      auto,
		inventory: NewInventory(auto, logger),
		resource:  resource,
		tools:     tools,
		aim:       aim,
		logger:    logger.Named("gathering").With(zap.String("resource", resource)),
	}, nil
}

// Scenario assembles the periodic tasks for the scheduler. A zero
// duration runs until cancelled.
func (g *Gatherer) Scenario(duration time.Duration) Scenario {
	return Scenario{
		Name:     fmt.Sprintf("gather-%s", g.resource),
		Duration: duration,
		Tasks: []scheduler.Task{
			{Name: "gather-swing", Interval: swingInterval, Run: g.swing},
			{Name: "weight-check", Interval: weightInterval, Run: g.checkWeight},
		},
	}
}

// swing takes a short step and harvests at the aim point. The first
// swing equips a tool; until one is found in the inventory every swing
// retries the equip and reports a recoverable error.
func (g *Gatherer) swing(ctx context.Context) error {
	if !g.equipped.Load() {
		if err := g.equipTool(ctx); err != nil {
			return err
		}
	}

	key := moveKeys[int(g.swings.Load())%len(moveKeys)]
	if err := g.auto.HoldKey(ctx, key, moveHold); err != nil {
		return fmt.Errorf("stepping %q: %w", key, err)
	}
	if err := g.auto.ClickAt(ctx, g.aim); err != nil {
		return fmt.Errorf("harvest swing: %w", err)
	}
	g.swings.Add(1)
	return nil
}

// equipTool opens the inventory and double-clicks the first tool from
// the preference list that is present.
func (g *Gatherer) equipTool(ctx context.Context) error {
	if err := g.inventory.Open(ctx); err != nil {
		return err
	}
	for _, tool := range g.tools {
		el, err := g.auto.FindElement(ctx, schemas.ElementQuery{Label: tool})
		if err != nil {
			return err
		}
		if el == nil {
			continue
		}
		if err := g.auto.DoubleClick(ctx, *el); err != nil {
			return fmt.Errorf("equipping %q: %w", tool, err)
		}
		g.equipped.Store(true)
		g.logger.Info("Equipped harvesting tool", zap.String("tool", tool))
		return g.inventory.Close(ctx)
	}
	if err := g.inventory.Close(ctx); err != nil {
		return err
	}
	return fmt.Errorf("no tool for %q in inventory: %w", g.resource, schemas.ErrElementNotFound)
}

// checkWeight deposits the load once the encumbered alert shows. An
// encumbered character cannot move, so further swings are wasted.
func (g *Gatherer) checkWeight(ctx context.Context) error {
	encumbered, err := g.auto.IsElementPresent(ctx, schemas.ElementQuery{Label: LabelAlertEncumbered})
	if err != nil {
		return err
	}
	if !encumbered {
		return nil
	}
	g.logger.Warn("Carry weight exceeded, depositing load")
	return g.deposit(ctx)
}

// deposit opens a nearby storage box and transfers everything across.
func (g *Gatherer) deposit(ctx context.Context) error {
	if _, err := g.auto.WaitForElement(ctx, schemas.ElementQuery{Label: LabelStorageBox}, waitShort, 0); err != nil {
		return fmt.Errorf("storage box: %w", err)
	}
	if err := g.auto.PressKey(ctx, "e"); err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	if err := g.inventory.TransferAll(ctx); err != nil {
		return err
	}
	g.deposits.Add(1)
	g.logger.Info("Deposited load", zap.Int64("total_deposits", g.deposits.Load()))
	return g.inventory.Close(ctx)
}

// Summary reports the counters accumulated so far.
func (g *Gatherer) Summary() (swings, deposits int64) {
	return g.swings.Load(), g.deposits.Load()
}
