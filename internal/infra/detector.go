package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// HTTPDetector runs person inference by posting a JPEG of the frame to an
// inference sidecar. A detection labelled "person" at or above the
// confidence threshold counts as present.
type HTTPDetector struct {
	endpoint      string
	minConfidence float64
	client        *http.Client
}

// detectionResponse is the sidecar's reply.
type detectionResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"detections"`
}

// NewHTTPDetector creates a detector against the given endpoint.
func NewHTTPDetector(endpoint string, minConfidence float64) *HTTPDetector {
	return &HTTPDetector{
		endpoint:      endpoint,
		minConfidence: minConfidence,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Detect posts the frame and reports whether any person detection meets
// the threshold. Errors are surfaced to the sampler, which treats them as
// "no person" for that sample.
func (d *HTTPDetector) Detect(ctx context.Context, frame domain.Frame) (bool, error) {
	payload, err := encodeJPEG(frame)
	if err != nil {
		return false, fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("inference returned status %d", resp.StatusCode)
	}

	var result detectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode inference response: %w", err)
	}

	for _, det := range result.Detections {
		if det.Label == "person" && det.Confidence >= d.minConfidence {
			return true, nil
		}
	}
	return false, nil
}

// encodeJPEG converts a BGR24 frame to a JPEG payload.
func encodeJPEG(frame domain.Frame) ([]byte, error) {
	if len(frame.Data) != frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame data size %d does not match %dx%d bgr24",
			len(frame.Data), frame.Width, frame.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i := 0; i < frame.Width*frame.Height; i++ {
		b, g, r := frame.Data[i*3], frame.Data[i*3+1], frame.Data[i*3+2]
		img.Pix[i*4] = r
		img.Pix[i*4+1] = g
		img.Pix[i*4+2] = b
		img.Pix[i*4+3] = 255
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ domain.PersonDetector = (*HTTPDetector)(nil)
