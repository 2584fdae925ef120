// File: internal/scenario/crafting.go
package scenario

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// Crafting drives the crafting tab of the inventory panel.
type Crafting struct {
	auto      Automation
	inventory *Inventory
	logger    *zap.Logger
}

func NewCrafting(auto Automation, logger *zap.Logger) *Crafting {
	return &Crafting{
		auto:      auto,
		inventory: NewInventory(auto, logger),
		logger:    logger.Named("crafting"),
	}
}

// CraftItem selects a recipe and presses craft. When the recipe is not
// in the crafting list the playbook falls back to the engrams tab, in
// case the recipe has not been learned or pinned yet.
func (p *Crafting) CraftItem(ctx context.Context, recipeLabel string) error {
	if err := p.inventory.Open(ctx); err != nil {
		return err
	}
	if err := p.inventory.SwitchTab(ctx, LabelTabCrafting); err != nil {
		return err
	}

	recipe, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: recipeLabel}, waitShort, 0)
	if err != nil {
		var nf *schemas.NotFoundError
		if !errors.As(err, &nf) {
			return fmt.Errorf("selecting recipe %q: %w", recipeLabel, err)
		}
		p.logger.Debug("Recipe not in crafting list, checking engrams",
			zap.String("recipe", recipeLabel))
		recipe, err = p.findViaEngrams(ctx, recipeLabel)
		if err != nil {
			return err
		}
	}

	if err := p.auto.Click(ctx, *recipe, schemas.Offset{}); err != nil {
		return fmt.Errorf("selecting recipe %q: %w", recipeLabel, err)
	}

	craft, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: LabelCraftButton}, waitShort, 0)
	if err != nil {
		return fmt.Errorf("craft button: %w", err)
	}
	if err := p.auto.Click(ctx, *craft, schemas.Offset{}); err != nil {
		return fmt.Errorf("pressing craft: %w", err)
	}

	p.logger.Info("Craft queued", zap.String("recipe", recipeLabel))
	return nil
}

func (p *Crafting) findViaEngrams(ctx context.Context, recipeLabel string) (*schemas.Detection, error) {
	tab, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: LabelEngramsTab}, waitShort, 0)
	if err != nil {
		return nil, fmt.Errorf("engrams tab: %w", err)
	}
	if err := p.auto.Click(ctx, *tab, schemas.Offset{}); err != nil {
		return nil, fmt.Errorf("opening engrams: %w", err)
	}

	recipe, err := p.auto.WaitForElement(ctx, schemas.ElementQuery{Label: recipeLabel}, waitShort, 0)
	if err != nil {
		return nil, fmt.Errorf("recipe %q not found in crafting or engrams: %w", recipeLabel, err)
	}
	return recipe, nil
}
