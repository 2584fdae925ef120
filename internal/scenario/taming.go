// File: internal/scenario/taming.go
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

// FoodPlan describes what a creature eats while being tamed and how
// often it needs topping up.
type FoodPlan struct {
	FoodLabel        string
	FoodInterval     time.Duration
	NarcoticInterval time.Duration
}

// foodPlans carries per-creature taming parameters. Unknown creatures
// fall back to the herbivore berry plan.
var foodPlans = map[string]FoodPlan{
	"trike":    {FoodLabel: LabelItemFoodBerry, FoodInterval: 300 * time.Second, NarcoticInterval: 600 * time.Second},
	"parasaur": {FoodLabel: LabelItemFoodBerry, FoodInterval: 300 * time.Second, NarcoticInterval: 600 * time.Second},
	"raptor":   {FoodLabel: LabelItemFoodMeat, FoodInterval: 240 * time.Second, NarcoticInterval: 480 * time.Second},
	"rex":      {FoodLabel: LabelItemFoodKibble, FoodInterval: 360 * time.Second, NarcoticInterval: 600 * time.Second},
}

var defaultPlan = FoodPlan{
	FoodLabel:        LabelItemFoodBerry,
	FoodInterval:     300 * time.Second,
	NarcoticInterval: 600 * time.Second,
}

// PlanFor returns the taming plan for a creature name.
func PlanFor(creature string) FoodPlan {
	if plan, ok := foodPlans[creature]; ok {
		return plan
	}
	return defaultPlan
}

// monitorInterval is how often the taming HUD is checked for alerts.
const monitorInterval = 5 * time.Second

// TamingMonitor keeps an unconscious creature fed and sedated until
// the tame completes. Feed and narcotic refills run on fixed cadences;
// a faster status check watches the HUD in between.
type TamingMonitor struct {
	auto     Automation
	status   *Status
	plan     FoodPlan
	creature string
	logger   *zap.Logger

	feeds     atomic.Int64
	narcotics atomic.Int64
	warnings  atomic.Int64
}

func NewTamingMonitor(auto Automation, creature string, logger *zap.Logger) *TamingMonitor {
	return &TamingMonitor{
		auto:     auto,
		status:   NewStatus(auto, logger),
		plan:     PlanFor(creature),
		creature: creature,
		logger:   logger.Named("taming").With(zap.String("creature", creature)),
	}
}

// Scenario assembles the periodic tasks for the scheduler. A zero
// duration runs until cancelled.
func (m *TamingMonitor) Scenario(duration time.Duration) Scenario {
	return Scenario{
		Name:     fmt.Sprintf("taming-%s", m.creature),
		Duration: duration,
		Tasks: []scheduler.Task{
			{Name: "feed-food", Interval: m.plan.FoodInterval, Run: m.feedFood},
			{Name: "feed-narcotic", Interval: m.plan.NarcoticInterval, Run: m.feedNarcotic},
			{Name: "status-check", Interval: monitorInterval, Run: m.checkStatus},
		},
	}
}

// feedFood puts the next food item into the creature. The creature's
// inventory must be reachable through the feed prompt; a missing
// prompt usually means the player drifted out of range, which is
// worth retrying on the next cadence rather than aborting.
func (m *TamingMonitor) feedFood(ctx context.Context) error {
	if err := m.openCreatureInventory(ctx); err != nil {
		return err
	}

	food, err := m.auto.WaitForElement(ctx, schemas.ElementQuery{Label: m.plan.FoodLabel}, waitShort, 0)
	if err != nil {
		return fmt.Errorf("food %q: %w", m.plan.FoodLabel, err)
	}
	if err := m.auto.DoubleClick(ctx, *food); err != nil {
		return fmt.Errorf("feeding %q: %w", m.plan.FoodLabel, err)
	}

	m.feeds.Add(1)
	m.logger.Info("Fed creature",
		zap.String("food", m.plan.FoodLabel),
		zap.Int64("total_feeds", m.feeds.Load()))
	return m.closeCreatureInventory(ctx)
}

// feedNarcotic tops torpor up so the creature stays unconscious.
func (m *TamingMonitor) feedNarcotic(ctx context.Context) error {
	if err := m.openCreatureInventory(ctx); err != nil {
		return err
	}

	narcotic, err := m.auto.WaitForElement(ctx, schemas.ElementQuery{Label: LabelItemNarcotic}, waitShort, 0)
	if err != nil {
		return fmt.Errorf("narcotic: %w", err)
	}
	if err := m.auto.DoubleClick(ctx, *narcotic); err != nil {
		return fmt.Errorf("feeding narcotic: %w", err)
	}

	m.narcotics.Add(1)
	m.logger.Info("Administered narcotic", zap.Int64("total_narcotics", m.narcotics.Load()))
	return m.closeCreatureInventory(ctx)
}

func (m *TamingMonitor) checkStatus(ctx context.Context) error {
	warnings, err := m.status.Check(ctx)
	if err != nil {
		return err
	}
	m.warnings.Add(int64(len(warnings)))
	return nil
}

func (m *TamingMonitor) openCreatureInventory(ctx context.Context) error {
	prompt, err := m.auto.WaitForElement(ctx, schemas.ElementQuery{Label: LabelFeedPrompt}, waitShort, 0)
	if err != nil {
		return fmt.Errorf("feed prompt: %w", err)
	}
	if err := m.auto.Click(ctx, *prompt, schemas.Offset{}); err != nil {
		return fmt.Errorf("opening creature inventory: %w", err)
	}
	if _, err := m.auto.WaitForElement(ctx, schemas.ElementQuery{Label: LabelCloseButton}, waitShort, 0); err != nil {
		return fmt.Errorf("creature inventory did not open: %w", err)
	}
	return nil
}

func (m *TamingMonitor) closeCreatureInventory(ctx context.Context) error {
	btn, err := m.auto.FindElement(ctx, schemas.ElementQuery{Label: LabelCloseButton})
	if err != nil || btn == nil {
		return err
	}
	return m.auto.Click(ctx, *btn, schemas.Offset{})
}

// Summary reports the counters accumulated so far.
func (m *TamingMonitor) Summary() (feeds, narcotics, warnings int64) {
	return m.feeds.Load(), m.narcotics.Load(), m.warnings.Load()
}
