// Package daemon implements the capture loop daemon.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/buffer"
	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
	"github.com/Murasan201/entry-security-cam-pi/internal/usecase"
)

// Config holds capture loop timing configuration.
type Config struct {
	ReadTimeout    time.Duration // Upper bound on a single frame read
	StatusInterval time.Duration // How often to log the status line
	RetryBackoff   time.Duration // Initial backoff after a transient read failure
	MaxBackoff     time.Duration // Backoff cap
	DrainTimeout   time.Duration // How long shutdown waits for in-flight persistence
}

// DefaultConfig returns default capture loop configuration.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    2 * time.Second,
		StatusInterval: 1 * time.Second,
		RetryBackoff:   100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		DrainTimeout:   30 * time.Second,
	}
}

// Capture is the orchestrating loop: it pulls frames from the source,
// feeds the ring buffer and the detection sampler, and drives the
// recording controller. It is the sole writer of the buffer and the sole
// driver of controller transitions, so the hot path needs no locking
// beyond the buffer's own snapshot boundary.
type Capture struct {
	config      Config
	deviceIndex int
	source      domain.FrameSource
	ring        *buffer.Ring
	sampler     *usecase.DetectionSampler
	controller  *usecase.RecordingController
	dispatcher  *usecase.PersistenceDispatcher
	events      domain.EventSink
	logger      *zap.Logger

	mu     sync.Mutex
	status domain.Status
}

// NewCapture creates the capture loop daemon.
func NewCapture(
	config Config,
	deviceIndex int,
	source domain.FrameSource,
	ring *buffer.Ring,
	sampler *usecase.DetectionSampler,
	controller *usecase.RecordingController,
	dispatcher *usecase.PersistenceDispatcher,
	events domain.EventSink,
	logger *zap.Logger,
) *Capture {
	return &Capture{
		config:      config,
		deviceIndex: deviceIndex,
		source:      source,
		ring:        ring,
		sampler:     sampler,
		controller:  controller,
		dispatcher:  dispatcher,
		events:      events,
		logger:      logger,
	}
}

// Status returns a read-only snapshot of the loop state. Safe to call
// from other goroutines (status endpoint, tests).
func (c *Capture) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run blocks until ctx is cancelled or the source is permanently lost.
// Both paths abort any active session without persisting a truncated
// window, drain the dispatcher under a deadline, and release the device.
func (c *Capture) Run(ctx context.Context) error {
	c.logger.Info("capture loop started",
		zap.Int("device_index", c.deviceIndex),
		zap.Int("buffer_capacity", c.ring.Cap()))

	start := time.Now()
	c.mu.Lock()
	c.status = domain.Status{
		State:       domain.StateIdle,
		DeviceIndex: c.deviceIndex,
		Capacity:    c.ring.Cap(),
		StartedAt:   start,
	}
	c.mu.Unlock()

	var (
		frames        uint64
		backoff       = c.config.RetryBackoff
		lastStatus    = start
		fpsWindowAt   = start
		fpsWindowed   uint64
		measuredFPS   float64
		shutdownCause error
	)

	for {
		select {
		case <-ctx.Done():
			c.shutdown(time.Now(), "shutdown")
			return nil
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, c.config.ReadTimeout)
		frame, err := c.source.Read(readCtx)
		cancel()

		now := time.Now()
		if err != nil {
			if ctx.Err() != nil {
				c.shutdown(now, "shutdown")
				return nil
			}
			if errors.Is(err, domain.ErrSourceGone) {
				shutdownCause = fmt.Errorf("frame source lost: %w", err)
				c.logger.Error("frame source permanently disconnected", zap.Error(err))
				c.shutdown(now, "source disconnected")
				return shutdownCause
			}

			c.logger.Warn("frame read failed, backing off",
				zap.Duration("backoff", backoff),
				zap.Error(err))
			c.events.Emit(domain.Event{
				Type:      domain.EventFrameReadError,
				Timestamp: now,
				Reason:    err.Error(),
			})
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.config.MaxBackoff {
				backoff = c.config.MaxBackoff
			}
			continue
		}
		backoff = c.config.RetryBackoff

		frames++
		fpsWindowed++
		c.ring.Push(frame)

		sample := c.sampler.MaybeSample(ctx, now, frame)
		c.controller.Tick(now, sample)

		if window := now.Sub(fpsWindowAt); window >= time.Second {
			measuredFPS = float64(fpsWindowed) / window.Seconds()
			fpsWindowAt = now
			fpsWindowed = 0
		}

		c.mu.Lock()
		c.status = domain.Status{
			State:       c.controller.State(),
			DeviceIndex: c.deviceIndex,
			Buffered:    c.ring.Len(),
			Capacity:    c.ring.Cap(),
			MeasuredFPS: measuredFPS,
			FramesTotal: frames,
			InFlight:    c.dispatcher.InFlight(),
			Queued:      c.dispatcher.Queued(),
			Sessions:    c.controller.SessionsCompleted(),
			StartedAt:   start,
		}
		status := c.status
		c.mu.Unlock()

		if now.Sub(lastStatus) >= c.config.StatusInterval {
			lastStatus = now
			c.logger.Info("status",
				zap.String("state", string(status.State)),
				zap.Int("buffered", status.Buffered),
				zap.Int("capacity", status.Capacity),
				zap.Float64("fps", status.MeasuredFPS),
				zap.Int("persist_in_flight", status.InFlight),
				zap.Int("persist_queued", status.Queued),
				zap.Uint64("sessions", status.Sessions))
		}
	}
}

// shutdown aborts the active session, drains persistence and releases the
// device. An in-progress window is dropped rather than persisted
// truncated.
func (c *Capture) shutdown(now time.Time, reason string) {
	c.logger.Info("capture loop stopping", zap.String("reason", reason))

	c.controller.Abort(now, reason)

	drainCtx, cancel := context.WithTimeout(context.Background(), c.config.DrainTimeout)
	defer cancel()
	if err := c.dispatcher.Close(drainCtx); err != nil {
		c.logger.Warn("persistence drain incomplete", zap.Error(err))
	}

	if err := c.source.Close(); err != nil {
		c.logger.Warn("failed to close frame source", zap.Error(err))
	}

	c.mu.Lock()
	c.status.State = domain.StateIdle
	c.mu.Unlock()
}
