// File: internal/scenario/inventory.go
package scenario

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// validTabs are the inventory panel tabs the playbook will switch to.
var validTabs = map[string]bool{
	LabelTabInventory: true,
	LabelTabCrafting:  true,
	LabelTabCosmetics: true,
}

// Inventory drives the inventory panel: opening, tab navigation, item
// transfer and consumption.
type Inventory struct {
	auto   Automation
	logger *zap.Logger
}

func NewInventory(auto Automation, logger *zap.Logger) *Inventory {
	return &Inventory{auto: auto, logger: logger.Named("inventory")}
}

// Open brings the inventory panel up and waits until it renders. When
// the close button is already visible the panel is open and nothing
// needs doing.
func (p *Inventory) Open(ctx context.Context) error {
	open, err := p.auto.IsElementPresent(ctx, schemas.ElementQuery{Label: LabelCloseButton})
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	if err := p.auto.PressKey(ctx, "i"); err != nil {
		return fmt.Errorf("opening inventory: %w", err)
	}
	if _, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: LabelCloseButton}, waitShort, 0); err != nil {
		return fmt.Errorf("inventory did not open: %w", err)
	}
	p.logger.Debug("Inventory panel open")
	return nil
}

// Close dismisses the panel if it is showing.
func (p *Inventory) Close(ctx context.Context) error {
	btn, err := p.auto.FindElement(ctx, schemas.ElementQuery{Label: LabelCloseButton})
	if err != nil {
		return err
	}
	if btn == nil {
		return nil
	}
	if err := p.auto.Click(ctx, *btn, schemas.Offset{}); err != nil {
		return fmt.Errorf("closing inventory: %w", err)
	}
	return nil
}

// SwitchTab selects one of the panel tabs by its element label.
func (p *Inventory) SwitchTab(ctx context.Context, tab string) error {
	if !validTabs[tab] {
		return fmt.Errorf("unknown inventory tab %q", tab)
	}
	el, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: tab}, waitShort, 0)
	if err != nil {
		return fmt.Errorf("switching to tab %q: %w", tab, err)
	}
	return p.auto.Click(ctx, *el, schemas.Offset{})
}

// TransferAll pushes the whole inventory across to the open container.
func (p *Inventory) TransferAll(ctx context.Context) error {
	el, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: LabelTransferAll}, waitShort, 0)
	if err != nil {
		return fmt.Errorf("transfer all: %w", err)
	}
	return p.auto.Click(ctx, *el, schemas.Offset{})
}

// EquipItem double-clicks an item slot, which equips or uses it.
func (p *Inventory) EquipItem(ctx context.Context, itemLabel string) error {
	el, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: itemLabel}, waitShort, 0)
	if err != nil {
		return fmt.Errorf("equipping %q: %w", itemLabel, err)
	}
	return p.auto.DoubleClick(ctx, *el)
}

// DropItem discards an item from the inventory. Dropping destroys the
// item for good, so the action goes through the executor's destructive
// gate and requires confirm to be set.
func (p *Inventory) DropItem(ctx context.Context, itemLabel string, confirm bool) error {
	el, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: itemLabel}, waitShort, 0)
	if err != nil {
		return fmt.Errorf("dropping %q: %w", itemLabel, err)
	}
	req := schemas.ActionRequest{
		Kind:        schemas.ActionClick,
		Target:      el,
		Destructive: true,
		Confirmed:   confirm,
	}
	if err := p.auto.Perform(ctx, req); err != nil {
		return fmt.Errorf("dropping %q: %w", itemLabel, err)
	}
	return p.auto.PressKey(ctx, "o")
}

// EatFood consumes a food item from the hotbar or inventory.
func (p *Inventory) EatFood(ctx context.Context, foodLabel string) error {
	if err := p.Open(ctx); err != nil {
		return err
	}
	if err := p.EquipItem(ctx, foodLabel); err != nil {
		return err
	}
	p.logger.Info("Consumed food item", zap.String("item", foodLabel))
	return p.Close(ctx)
}
