// File: internal/vision/cache.go
// Description: Staleness-aware store of the most recent detections per label.
// Writes come from the background loop or on-demand cycles; reads come from
// locator queries on any goroutine.

package vision

import (
	"sort"
	"sync"
	"time"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// entry holds the detections from the most recent update cycle for one label,
// plus the timestamp of that cycle.
type entry struct {
	detections []schemas.Detection
	updatedAt  time.Time
}

// Cache stores the most recent detections per label and answers
// staleness-aware queries. Entries older than the memory timeout are treated
// as absent at read time; nothing is purged eagerly (write-light,
// read-checked). A single RWMutex keeps readers and the writer from ever
// observing a partially-updated label entry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	timeout time.Duration

	// now is swappable so staleness tests don't have to sleep.
	now func() time.Time
}

// NewCache creates a cache with the given staleness window.
func NewCache(memoryTimeout time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		timeout: memoryTimeout,
		now:     time.Now,
	}
}

// Update replaces the prior entry for the label with the detections of a new
// cycle. Last writer wins per label; results are never merged or appended.
func (c *Cache) Update(label string, detections []schemas.Detection, at time.Time) {
	stored := make([]schemas.Detection, len(detections))
	copy(stored, detections)

	c.mu.Lock()
	c.entries[label] = entry{detections: stored, updatedAt: at}
	c.mu.Unlock()
}

// UpdateCycle applies one full detection cycle grouped by label. Labels not
// present in the cycle keep their previous entry until it goes stale.
func (c *Cache) UpdateCycle(byLabel map[string][]schemas.Detection, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for label, detections := range byLabel {
		stored := make([]schemas.Detection, len(detections))
		copy(stored, detections)
		c.entries[label] = entry{detections: stored, updatedAt: at}
	}
}

// Query returns the cached detections for the label with confidence at or
// above minConfidence and age within the memory timeout, ordered by
// confidence descending. Ties break toward the larger bounding box, then the
// earlier observation.
func (c *Cache) Query(label string, minConfidence float64) []schemas.Detection {
	c.mu.RLock()
	e, ok := c.entries[label]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.updatedAt) > c.timeout {
		return nil
	}

	var out []schemas.Detection
	for _, d := range e.detections {
		if d.Confidence >= minConfidence {
			out = append(out, d)
		}
	}
	sortDetections(out)
	return out
}

// IsPresent reports whether at least one fresh detection matches. Purely
// derived from Query; causes no detection work.
func (c *Cache) IsPresent(label string, minConfidence float64) bool {
	return len(c.Query(label, minConfidence)) > 0
}

// Labels returns the labels currently holding a fresh entry.
func (c *Cache) Labels() []string {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	labels := make([]string, 0, len(c.entries))
	for label, e := range c.entries {
		if now.Sub(e.updatedAt) <= c.timeout {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// sortDetections orders by confidence descending, then area descending, then
// earlier observation.
func sortDetections(dets []schemas.Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		a, b := dets[i], dets[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Box.Area() != b.Box.Area() {
			return a.Box.Area() > b.Box.Area()
		}
		return a.ObservedAt.Before(b.ObservedAt)
	})
}
