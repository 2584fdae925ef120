// File: internal/capture/replay.go

// Package capture supplies frame sources for the vision pipeline. The
// replay source feeds previously recorded screenshots from disk, which
// keeps scenario runs and tests independent of a live screen.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// ErrExhausted is returned once a non-looping replay source has served
// every recorded frame.
var ErrExhausted = errors.New("capture: replay frames exhausted")

// ReplaySource serves PNG frames from a directory in lexical order.
// With looping enabled it wraps around after the last frame.
type ReplaySource struct {
	mu     sync.Mutex
	files  []string
	idx    int
	loop   bool
	closed bool
	logger *zap.Logger
}

var _ schemas.FrameSource = (*ReplaySource)(nil)

// NewReplaySource scans dir for PNG files. The directory must contain
// at least one frame.
func NewReplaySource(dir string, loop bool, logger *zap.Logger) (*ReplaySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading replay directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("replay directory %s contains no png frames", dir)
	}

	logger.Info("Replay source ready",
		zap.String("dir", dir),
		zap.Int("frames", len(files)),
		zap.Bool("loop", loop))

	return &ReplaySource{files: files, loop: loop, logger: logger.Named("capture")}, nil
}

// Capture decodes the next recorded frame and crops it to the region.
func (s *ReplaySource) Capture(ctx context.Context, region schemas.Region) (schemas.Frame, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Frame{}, err
	}

	path, err := s.next()
	if err != nil {
		return schemas.Frame{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return schemas.Frame{}, fmt.Errorf("opening frame %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return schemas.Frame{}, fmt.Errorf("decoding frame %s: %w", filepath.Base(path), err)
	}

	if region.W > 0 && region.H > 0 {
		img = cropTo(img, region)
	}

	return schemas.Frame{
		Image:      img,
		Region:     region,
		CapturedAt: time.Now(),
	}, nil
}

func (s *ReplaySource) next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("capture: replay source closed")
	}
	if s.idx >= len(s.files) {
		if !s.loop {
			return "", ErrExhausted
		}
		s.idx = 0
	}
	path := s.files[s.idx]
	s.idx++
	return path, nil
}

// Close stops the source. Subsequent captures fail.
func (s *ReplaySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FrameCount reports how many recorded frames the source holds.
func (s *ReplaySource) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropTo clips the image to the region, treating the region as a
// window anchored at the image origin. Recorded frames cover the full
// capture region, so the crop is bounds-relative rather than
// screen-relative.
func cropTo(img image.Image, region schemas.Region) image.Image {
	b := img.Bounds()
	window := image.Rect(b.Min.X, b.Min.Y, b.Min.X+region.W, b.Min.Y+region.H).Intersect(b)
	if window == b || window.Empty() {
		return img
	}
	si, ok := img.(subImager)
	if !ok {
		return img
	}
	return si.SubImage(window)
}
