// File: internal/capture/replay_test.go
package capture

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
)

// writeFrame drops a solid-colour PNG into dir so frame identity can
// be asserted after decoding.
func writeFrame(t *testing.T, dir, name string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestReplayServesFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "002_second.png", color.RGBA{G: 255, A: 255})
	writeFrame(t, dir, "001_first.png", color.RGBA{R: 255, A: 255})
	writeFrame(t, dir, "notes.txt.bak", color.RGBA{})

	src, err := NewReplaySource(dir, false, zap.NewNop())
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 2, src.FrameCount())

	region := schemas.Region{W: 32, H: 32}

	first, err := src.Capture(context.Background(), region)
	require.NoError(t, err)
	r, _, _, _ := first.Image.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.False(t, first.CapturedAt.IsZero())

	second, err := src.Capture(context.Background(), region)
	require.NoError(t, err)
	_, g, _, _ := second.Image.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), g)

	_, err = src.Capture(context.Background(), region)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestReplayLoopsWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "only.png", color.RGBA{B: 255, A: 255})

	src, err := NewReplaySource(dir, true, zap.NewNop())
	require.NoError(t, err)
	defer src.Close()

	for i := 0; i < 5; i++ {
		_, err := src.Capture(context.Background(), schemas.Region{W: 32, H: 32})
		require.NoError(t, err)
	}
}

func TestReplayCropsToRegion(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "frame.png", color.RGBA{R: 255, A: 255})

	src, err := NewReplaySource(dir, false, zap.NewNop())
	require.NoError(t, err)
	defer src.Close()

	frame, err := src.Capture(context.Background(), schemas.Region{X: 500, Y: 500, W: 16, H: 8})
	require.NoError(t, err)
	b := frame.Image.Bounds()
	assert.Equal(t, 16, b.Dx())
	assert.Equal(t, 8, b.Dy())
}

func TestReplayRejectsEmptyDirectory(t *testing.T) {
	_, err := NewReplaySource(t.TempDir(), false, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no png frames")
}

func TestReplayClosedSourceFails(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "frame.png", color.RGBA{A: 255})

	src, err := NewReplaySource(dir, true, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = src.Capture(context.Background(), schemas.Region{W: 32, H: 32})
	require.Error(t, err)
}

func TestReplayHonoursContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "frame.png", color.RGBA{A: 255})

	src, err := NewReplaySource(dir, true, zap.NewNop())
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Capture(ctx, schemas.Region{W: 32, H: 32})
	assert.ErrorIs(t, err, context.Canceled)
}
