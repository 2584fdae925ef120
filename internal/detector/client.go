// File: internal/detector/client.go

// Package detector provides clients for external object detection
// services. A detection service receives a captured frame and returns
// the UI elements it recognised, with per-element confidence scores.
package detector

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
	"github.com/xkilldash9x/uipilot/internal/config"
)

// wireDetection mirrors the JSON shape emitted by the detection service.
type wireDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		W float64 `json:"w"`
		H float64 `json:"h"`
	} `json:"box"`
}

type wireResponse struct {
	Detections []wireDetection `json:"detections"`
}

// Client talks to a remote detection service over HTTP. Frames are
// posted as PNG and answered with a JSON list of detections.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ schemas.Detector = (*Client)(nil)

// NewClient builds a detector client from config. The endpoint must
// point at the service root; the client appends the detect route.
func NewClient(cfg config.DetectorConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("detector"),
	}
}

// SetHTTPClient overrides the default HTTP client, primarily for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// Detect posts the frame to the service and maps the answer onto
// schema detections. Box coordinates come back frame-relative and are
// translated into screen space using the frame's region.
func (c *Client) Detect(ctx context.Context, frame schemas.Frame, minConfidence float64) ([]schemas.Detection, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("frame has no image data")
	}

	var body bytes.Buffer
	if err := png.Encode(&body, frame.Image); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}

	url := c.endpoint + "/detect?min_confidence=" + strconv.FormatFloat(minConfidence, 'f', -1, 64)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("building detect request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a bounded slice of the body so service errors surface
		// in logs without trusting its size.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect request: service returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading detect response: %w", err)
	}

	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("decoding detect response: %w", err)
	}

	observed := frame.CapturedAt
	if observed.IsZero() {
		observed = time.Now()
	}

	detections := make([]schemas.Detection, 0, len(wire.Detections))
	for _, w := range wire.Detections {
		if w.Confidence < minConfidence {
			continue
		}
		detections = append(detections, schemas.Detection{
			Label:      w.Label,
			Confidence: w.Confidence,
			Box: schemas.Box{
				X: w.Box.X + float64(frame.Region.X),
				Y: w.Box.Y + float64(frame.Region.Y),
				W: w.Box.W,
				H: w.Box.H,
			},
			ObservedAt: observed,
		})
	}

	c.logger.Debug("Detection round trip complete",
		zap.Int("detections", len(detections)),
		zap.Duration("latency", time.Since(start)))
	return detections, nil
}
