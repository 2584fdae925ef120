// File: api/schemas/detection.go
package schemas

import (
	"image"
	"time"
)

// Point is a location in capture-space coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset shifts a point by a fixed amount. Used when a caller wants to click
// slightly off the center of an element (e.g. a label next to a checkbox).
type Offset struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Box is an axis-aligned bounding box in capture-space coordinates.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Area returns the box surface, used as a tie-breaker when ranking detections.
func (b Box) Area() float64 {
	return b.W * b.H
}

// Detection is one labeled, confidence-scored, localized observation from the
// object detector. Immutable once created.
type Detection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        Box       `json:"box"`
	ObservedAt time.Time `json:"observed_at"`
}

// Center resolves the detection to a screen point at the bounding-box center.
func (d Detection) Center() Point {
	return d.Box.Center()
}

// ElementQuery names a UI element to look up. Confidence of zero means
// "use the session default floor". Pure value, no side effects.
type ElementQuery struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Region is the screen region frames are captured from, in pixels.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Contains reports whether p falls inside the region.
func (r Region) Contains(p Point) bool {
	return p.X >= float64(r.X) && p.X < float64(r.X+r.W) &&
		p.Y >= float64(r.Y) && p.Y < float64(r.Y+r.H)
}

// Frame is a single captured image, bounded to the configured region.
type Frame struct {
	Image      image.Image
	Region     Region
	CapturedAt time.Time
}
