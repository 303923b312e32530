package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/buffer"
	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// RecordingController is the debounced start/stop state machine. It is
// driven exclusively from the capture loop goroutine: one Tick per frame,
// carrying the latest sample result. All mode state lives here; observers
// get read-only copies through the capture loop's status snapshot.
type RecordingController struct {
	ring       *buffer.Ring
	dispatcher domain.ArtifactDispatcher
	events     domain.EventSink
	logger     *zap.Logger

	fps       float64
	postEvent time.Duration

	// Continuous fallback (detector off + record-all): one long session,
	// flushed as a segment every segmentEvery and the buffer cleared.
	continuous   bool
	segmentEvery time.Duration
	segmentStart time.Time

	state         domain.SessionState
	sessionID     string
	startedAt     time.Time
	lastDetection time.Time
	completed     uint64
}

// NewRecordingController creates a controller in the Idle state.
func NewRecordingController(
	ring *buffer.Ring,
	dispatcher domain.ArtifactDispatcher,
	fps float64,
	postEvent time.Duration,
	events domain.EventSink,
	logger *zap.Logger,
) *RecordingController {
	return &RecordingController{
		ring:       ring,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
		fps:        fps,
		postEvent:  postEvent,
		state:      domain.StateIdle,
	}
}

// EnableContinuous switches the controller to the record-all fallback:
// the session starts on the first tick and the buffer is flushed as a
// segment artifact every segmentEvery. Must be called before the first
// Tick.
func (c *RecordingController) EnableContinuous(segmentEvery time.Duration) {
	c.continuous = true
	c.segmentEvery = segmentEvery
}

// State returns the current session state.
func (c *RecordingController) State() domain.SessionState {
	return c.state
}

// SessionsCompleted returns the number of sessions that ended with an
// artifact hand-off.
func (c *RecordingController) SessionsCompleted() uint64 {
	return c.completed
}

// Tick advances the state machine. The transition function is total:
// unsampled ticks and absent samples while Idle are explicit no-ops.
func (c *RecordingController) Tick(now time.Time, sample domain.SampleResult) {
	if c.continuous {
		c.tickContinuous(now)
		return
	}

	if sample.Sampled && sample.Present {
		c.lastDetection = now
		if c.state == domain.StateIdle {
			c.start(now)
		}
		return
	}

	// Stop only on an actual absent sample, and only once the post-event
	// window has elapsed without a fresh detection. A single missed
	// sample must never truncate an in-progress event.
	if c.state == domain.StateRecording && sample.Sampled && !sample.Present {
		if now.Sub(c.lastDetection) >= c.postEvent {
			c.stop(now)
		}
	}
}

// Abort returns to Idle without persisting. Used on shutdown and source
// disconnect, where handing off a truncated window would be worse than
// dropping it.
func (c *RecordingController) Abort(now time.Time, reason string) {
	if c.state != domain.StateRecording {
		return
	}
	c.logger.Info("recording aborted",
		zap.String("session_id", c.sessionID),
		zap.String("reason", reason),
		zap.Duration("duration", now.Sub(c.startedAt)))
	c.events.Emit(domain.Event{
		Type:      domain.EventSessionStopped,
		Timestamp: now,
		SessionID: c.sessionID,
		Reason:    reason,
	})
	c.reset()
}

func (c *RecordingController) tickContinuous(now time.Time) {
	if c.state == domain.StateIdle {
		c.start(now)
		c.segmentStart = now
		return
	}
	if now.Sub(c.segmentStart) < c.segmentEvery {
		return
	}
	frames := c.ring.Snapshot()
	c.ring.Clear()
	c.segmentStart = now
	if len(frames) == 0 {
		return
	}
	c.submit(now, frames, domain.TriggerSegment)
}

func (c *RecordingController) start(now time.Time) {
	c.state = domain.StateRecording
	c.sessionID = uuid.NewString()
	c.startedAt = now
	c.lastDetection = now

	c.logger.Info("recording started",
		zap.String("session_id", c.sessionID),
		zap.Int("buffered_frames", c.ring.Len()))
	c.events.Emit(domain.Event{
		Type:      domain.EventSessionStarted,
		Timestamp: now,
		SessionID: c.sessionID,
	})
}

func (c *RecordingController) stop(now time.Time) {
	frames := c.ring.Snapshot()
	c.submit(now, frames, domain.TriggerPerson)

	c.logger.Info("recording stopped",
		zap.String("session_id", c.sessionID),
		zap.Duration("duration", now.Sub(c.startedAt)),
		zap.Int("frames", len(frames)))
	c.events.Emit(domain.Event{
		Type:      domain.EventSessionStopped,
		Timestamp: now,
		SessionID: c.sessionID,
		Reason:    "post-event window elapsed",
	})
	c.completed++
	c.reset()
}

func (c *RecordingController) submit(now time.Time, frames []domain.Frame, trigger domain.TriggerKind) {
	artifact := domain.RecordingArtifact{
		SessionID: c.sessionID,
		Filename:  fmt.Sprintf("security_%s.mp4", now.Format("2006-01-02_15-04-05")),
		Frames:    frames,
		FPS:       c.fps,
		EndedAt:   now,
		Trigger:   trigger,
	}
	if len(frames) > 0 {
		artifact.StartedAt = frames[0].Timestamp
	}
	if err := c.dispatcher.Submit(artifact); err != nil {
		c.logger.Warn("artifact hand-off rejected",
			zap.String("session_id", c.sessionID),
			zap.Error(err))
	}
}

func (c *RecordingController) reset() {
	c.state = domain.StateIdle
	c.sessionID = ""
	c.startedAt = time.Time{}
	c.lastDetection = time.Time{}
}
