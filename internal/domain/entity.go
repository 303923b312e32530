// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// SessionState identifies the recording state machine's mode.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateRecording SessionState = "recording"
)

// Frame is a single captured video frame: raw BGR24 pixels plus capture
// metadata. Immutable once captured; the ring buffer owns it until
// eviction, after which only snapshots reference it.
type Frame struct {
	Data      []byte // Width*Height*3 bytes, BGR24
	Width     int
	Height    int
	Timestamp time.Time
	Seq       uint64
}

// RecordingArtifact is an immutable copy of buffered frames produced at
// session stop. Created once, consumed exactly once by the persistence
// dispatcher, then discarded.
type RecordingArtifact struct {
	SessionID string  // UUID of the session that produced it
	Filename  string  // timestamp-derived, e.g. security_2026-01-02_15-04-05.mp4
	Frames    []Frame // value-copied at snapshot time
	FPS       float64
	StartedAt time.Time // capture time of the oldest frame
	EndedAt   time.Time // session stop time
	Trigger   TriggerKind
}

// TriggerKind says why an artifact was produced.
type TriggerKind string

const (
	TriggerPerson  TriggerKind = "person"  // debounced person detection
	TriggerSegment TriggerKind = "segment" // continuous-mode rotation
)

// Recording is a persisted artifact as indexed by the catalog.
type Recording struct {
	ID         string
	SessionID  string
	Path       string
	StartedAt  time.Time
	EndedAt    time.Time
	FrameCount int
	SizeBytes  int64
	Trigger    string
}

// EventType names an observability event.
type EventType string

const (
	EventSessionStarted    EventType = "session_started"
	EventSessionStopped    EventType = "session_stopped"
	EventArtifactPersisted EventType = "artifact_persisted"
	EventArtifactFailed    EventType = "artifact_failed"
	EventDetectorError     EventType = "detector_error"
	EventFrameReadError    EventType = "frame_read_error"
)

// Event is a structured observability record. Emitted to collaborators
// (log, MQTT); core logic never depends on delivery.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Path      string    `json:"path,omitempty"`   // artifact path, when relevant
	Reason    string    `json:"reason,omitempty"` // stop reason or collaborator error
}

// SampleResult is the outcome of offering a frame to the detection sampler.
type SampleResult struct {
	Sampled bool // an inference call actually ran
	Present bool // person visible; meaningful only when Sampled
}

// Status is a read-only snapshot of the capture loop for observers
// (status log line, HTTP endpoint).
type Status struct {
	State       SessionState `json:"state"`
	DeviceIndex int          `json:"device_index"`
	Buffered    int          `json:"buffered"`
	Capacity    int          `json:"capacity"`
	MeasuredFPS float64      `json:"measured_fps"`
	FramesTotal uint64       `json:"frames_total"`
	InFlight    int          `json:"persist_in_flight"`
	Queued      int          `json:"persist_queued"`
	Sessions    uint64       `json:"sessions_completed"`
	StartedAt   time.Time    `json:"started_at"`
}
