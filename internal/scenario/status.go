// File: internal/scenario/status.go
package scenario

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// alertChecks pairs on-screen alert icons with human readable
// warnings. Order here is the order warnings are reported in.
var alertChecks = []struct {
	label   string
	message string
}{
	{LabelAlertStarving, "creature is starving"},
	{LabelAlertTorporLow, "torpor is dropping"},
	{LabelAlertHealthLow, "health is low"},
	{LabelAlertEncumbered, "inventory is over weight"},
}

// Status scans the HUD for alert icons without touching any input.
type Status struct {
	auto   Finder
	logger *zap.Logger
}

func NewStatus(auto Finder, logger *zap.Logger) *Status {
	return &Status{auto: auto, logger: logger.Named("status")}
}

// Check returns a warning string for every alert icon currently
// visible. An empty slice means the HUD looks healthy.
func (p *Status) Check(ctx context.Context) ([]string, error) {
	var warnings []string
	for _, check := range alertChecks {
		present, err := p.auto.IsElementPresent(ctx, schemas.ElementQuery{Label: check.label})
		if err != nil {
			return nil, err
		}
		if present {
			warnings = append(warnings, check.message)
			p.logger.Warn("HUD alert visible",
				zap.String("alert", check.label),
				zap.String("warning", check.message))
		}
	}
	return warnings, nil
}
