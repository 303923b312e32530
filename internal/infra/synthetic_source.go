package infra

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// SyntheticSource generates frames at a fixed rate without any capture
// hardware. Used for development and by the integration suite.
type SyntheticSource struct {
	width  int
	height int
	fps    float64

	ticker *time.Ticker
	seq    uint64
	closed atomic.Bool
}

// NewSyntheticSource creates a source producing width x height frames at
// the given rate.
func NewSyntheticSource(width, height int, fps float64) *SyntheticSource {
	return &SyntheticSource{width: width, height: height, fps: fps}
}

// Open starts the pacing ticker. Negotiation is trivially the requested
// format.
func (s *SyntheticSource) Open(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / s.fps)
	if interval <= 0 {
		interval = time.Millisecond
	}
	s.ticker = time.NewTicker(interval)
	return nil
}

// Read blocks until the next frame is due or ctx is done. Returns
// ErrSourceGone after Close.
func (s *SyntheticSource) Read(ctx context.Context) (domain.Frame, error) {
	if s.closed.Load() {
		return domain.Frame{}, domain.ErrSourceGone
	}
	select {
	case <-ctx.Done():
		return domain.Frame{}, ctx.Err()
	case <-s.ticker.C:
	}
	if s.closed.Load() {
		return domain.Frame{}, domain.ErrSourceGone
	}

	seq := s.seq
	s.seq++
	data := make([]byte, s.width*s.height*3)
	// Moving diagonal gradient so consecutive frames differ.
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			i := (y*s.width + x) * 3
			v := byte(x + y + int(seq))
			data[i] = v
			data[i+1] = v / 2
			data[i+2] = 255 - v
		}
	}
	return domain.Frame{
		Data:      data,
		Width:     s.width,
		Height:    s.height,
		Timestamp: time.Now(),
		Seq:       seq,
	}, nil
}

// Negotiated returns the requested format unchanged.
func (s *SyntheticSource) Negotiated() (int, int, float64) {
	return s.width, s.height, s.fps
}

// Close stops the ticker.
func (s *SyntheticSource) Close() error {
	s.closed.Store(true)
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}

var _ domain.FrameSource = (*SyntheticSource)(nil)
