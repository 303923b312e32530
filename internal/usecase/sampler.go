// Package usecase contains the recording pipeline's application logic.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// DetectionSampler throttles person inference to a fixed cadence so a slow
// detector cannot stall frame ingestion. Driven only from the capture loop
// goroutine.
type DetectionSampler struct {
	detector domain.PersonDetector
	events   domain.EventSink
	logger   *zap.Logger
	interval time.Duration

	lastSample time.Time
}

// NewDetectionSampler creates a sampler. A nil detector never samples,
// which is the detector-off configuration.
func NewDetectionSampler(
	detector domain.PersonDetector,
	interval time.Duration,
	events domain.EventSink,
	logger *zap.Logger,
) *DetectionSampler {
	return &DetectionSampler{
		detector: detector,
		events:   events,
		logger:   logger,
		interval: interval,
	}
}

// MaybeSample offers a frame for inference. The detector runs only when the
// sampling interval has elapsed since the last actual invocation; skipped
// offers return a zero SampleResult without touching the detector. Detector
// failures are reported as a detector_error event and count as "no person"
// for that sample; they never propagate.
func (s *DetectionSampler) MaybeSample(ctx context.Context, now time.Time, frame domain.Frame) domain.SampleResult {
	if s.detector == nil {
		return domain.SampleResult{}
	}
	if !s.lastSample.IsZero() && now.Sub(s.lastSample) < s.interval {
		return domain.SampleResult{}
	}
	s.lastSample = now

	present, err := s.detector.Detect(ctx, frame)
	if err != nil {
		s.logger.Warn("person inference failed",
			zap.Uint64("frame_seq", frame.Seq),
			zap.Error(err))
		s.events.Emit(domain.Event{
			Type:      domain.EventDetectorError,
			Timestamp: now,
			Reason:    err.Error(),
		})
		return domain.SampleResult{Sampled: true, Present: false}
	}
	return domain.SampleResult{Sampled: true, Present: present}
}
