// File: api/schemas/interfaces.go
// Description: Contracts for the external collaborators the runtime drives.
// Keeping these here (rather than in the consuming packages) lets every
// component depend on the same agnostic surface, mirroring how the rest of
// the codebase wires engines together.

package schemas

import "context"

// Detector runs object detection over a captured frame and returns every
// observation at or above the confidence floor. How detections are computed
// is the detector's business; callers only consume the results.
type Detector interface {
	Detect(ctx context.Context, frame Frame, minConfidence float64) ([]Detection, error)
}

// FrameSource captures frames from a bounded screen region.
type FrameSource interface {
	Capture(ctx context.Context, region Region) (Frame, error)
	Close() error
}

// Injector delivers primitive input events to the operating system. Each
// primitive is synchronous; failures surface as errors the executor retries.
type Injector interface {
	MoveTo(ctx context.Context, p Point) error
	ButtonDown(ctx context.Context, b MouseButton) error
	ButtonUp(ctx context.Context, b MouseButton) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
}
