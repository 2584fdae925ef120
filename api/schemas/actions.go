// File: api/schemas/actions.go
package schemas

import "time"

// ActionKind enumerates the input operations the executor can perform.
type ActionKind string

const (
	ActionClick       ActionKind = "click"
	ActionDoubleClick ActionKind = "double_click"
	ActionRightClick  ActionKind = "right_click"
	ActionDrag        ActionKind = "drag"
	ActionKeyPress    ActionKind = "key_press"
	ActionKeyHold     ActionKind = "key_hold"
)

// MouseButton identifies a physical mouse button for injector primitives.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// ActionRequest describes one input operation against a located element or an
// explicit point. Exactly one of Target or Point must be set for mouse kinds;
// drag additionally needs To or ToPoint.
type ActionRequest struct {
	Kind ActionKind

	// Target resolves to its bounding-box center plus Offset. Point is used
	// as-is when no Target is given.
	Target *Detection
	Point  *Point
	Offset Offset

	// Drag destination.
	To      *Detection
	ToPoint *Point

	// Keyboard kinds.
	Key     string
	HoldFor time.Duration

	// Destructive marks requests that discard or destroy game state (drop,
	// destroy). With safety checks enabled these are rejected unless
	// Confirmed is also set.
	Destructive bool
	Confirmed   bool
}
