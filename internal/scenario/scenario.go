// File: internal/scenario/scenario.go

// Package scenario contains the high level playbooks that drive the
// game UI. Playbooks are written against narrow capability interfaces
// so they can run on the real runtime or on fakes in tests.
package scenario

import (
	"context"
	"time"

	"github.com/xkilldash9x/uipilot/api/schemas"
	"github.com/xkilldash9x/uipilot/internal/scheduler"
)

// Finder locates UI elements through the detection cache.
type Finder interface {
	FindElement(ctx context.Context, q schemas.ElementQuery) (*schemas.Detection, error)
	FindAllElements(ctx context.Context, q schemas.ElementQuery) ([]schemas.Detection, error)
	IsElementPresent(ctx context.Context, q schemas.ElementQuery) (bool, error)
	WaitForElement(ctx context.Context, q schemas.ElementQuery, timeout, pollInterval time.Duration) (*schemas.Detection, error)
}

// Actor performs input actions against located elements.
type Actor interface {
	Perform(ctx context.Context, req schemas.ActionRequest) error
	Click(ctx context.Context, target schemas.Detection, offset schemas.Offset) error
	ClickAt(ctx context.Context, p schemas.Point) error
	DoubleClick(ctx context.Context, target schemas.Detection) error
	RightClick(ctx context.Context, target schemas.Detection) error
	Drag(ctx context.Context, from, to schemas.Detection) error
	PressKey(ctx context.Context, key string) error
	HoldKey(ctx context.Context, key string, d time.Duration) error
}

// Automation is the full capability surface playbooks operate on.
type Automation interface {
	Finder
	Actor
}

// Scenario is a named bundle of periodic tasks. The runtime turns one
// into a scheduler session and runs it to completion.
type Scenario struct {
	Name     string
	Duration time.Duration
	Tasks    []scheduler.Task
}

// UI element labels emitted by the detection model.
const (
	LabelInventoryButton = "inventory_button"
	LabelCloseButton     = "close_button"
	LabelTransferAll     = "transfer_all_button"
	LabelCraftButton     = "craft_button"
	LabelEngramsTab      = "engrams_tab"
	LabelSearchBar       = "search_bar"

	LabelTabInventory = "inventory_tab"
	LabelTabCrafting  = "crafting_tab"
	LabelTabCosmetics = "cosmetics_tab"

	LabelAlertStarving    = "starving_alert"
	LabelAlertTorporLow   = "torpor_low_alert"
	LabelAlertHealthLow   = "health_low_alert"
	LabelAlertEncumbered  = "encumbered_alert"
	LabelFeedPrompt       = "feed_prompt"
	LabelUnconsciousIcon  = "unconscious_icon"
	LabelTamingBar        = "taming_bar"
	LabelStorageBox       = "storage_box"

	LabelItemFoodBerry  = "item_berry"
	LabelItemFoodMeat   = "item_raw_meat"
	LabelItemNarcotic   = "item_narcotic"
	LabelItemFoodKibble = "item_kibble"
)

// waitShort is the default timeout for elements expected to already be
// on screen when the playbook reaches for them.
const waitShort = 5 * time.Second
