// File: internal/vision/pipeline.go
package vision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// Pipeline runs one capture-detect-cache-update cycle. The background loop
// drives it continuously; with background detection disabled, the locator
// drives it on demand per query.
type Pipeline struct {
	source        schemas.FrameSource
	detector      schemas.Detector
	cache         *Cache
	region        schemas.Region
	minConfidence float64
	logger        *zap.Logger
}

// NewPipeline wires a frame source and a detector to the cache.
func NewPipeline(
	source schemas.FrameSource,
	detector schemas.Detector,
	cache *Cache,
	region schemas.Region,
	minConfidence float64,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		source:        source,
		detector:      detector,
		cache:         cache,
		region:        region,
		minConfidence: minConfidence,
		logger:        logger.Named("pipeline"),
	}
}

// RunCycle captures a frame, runs detection at the given confidence floor
// (zero means the pipeline default) and replaces the cache entries of every
// detected label. Collaborator failures surface as DetectionSourceError.
func (p *Pipeline) RunCycle(ctx context.Context, minConfidence float64) error {
	if minConfidence <= 0 {
		minConfidence = p.minConfidence
	}

	frame, err := p.source.Capture(ctx, p.region)
	if err != nil {
		return &schemas.DetectionSourceError{Op: "capture", Err: err}
	}

	detections, err := p.detector.Detect(ctx, frame, minConfidence)
	if err != nil {
		return &schemas.DetectionSourceError{Op: "detect", Err: err}
	}

	at := time.Now()
	byLabel := make(map[string][]schemas.Detection)
	for _, d := range detections {
		if d.ObservedAt.IsZero() {
			d.ObservedAt = at
		}
		byLabel[d.Label] = append(byLabel[d.Label], d)
	}
	p.cache.UpdateCycle(byLabel, at)

	p.logger.Debug("Detection cycle complete",
		zap.Int("detections", len(detections)),
		zap.Int("labels", len(byLabel)))
	return nil
}

// Cache exposes the cache the pipeline feeds.
func (p *Pipeline) Cache() *Cache { return p.cache }
