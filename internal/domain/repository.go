package domain

import (
	"context"
	"errors"
)

// ErrSourceGone signals permanent loss of the capture device. The capture
// loop treats any other read error as transient.
var ErrSourceGone = errors.New("frame source disconnected")

// ErrDispatcherClosed is returned by Submit after shutdown has begun.
var ErrDispatcherClosed = errors.New("persistence dispatcher closed")

// FrameSource delivers frames from a capture device.
// Implementations: ffmpeg V4L2 pipe, synthetic generator.
type FrameSource interface {
	// Open claims the device and starts delivery.
	Open(ctx context.Context) error

	// Read returns the next frame, blocking until one is available or ctx
	// is done. Returns ErrSourceGone when the device is permanently lost.
	Read(ctx context.Context) (Frame, error)

	// Negotiated returns the actual format after Open. The buffer capacity
	// is recomputed from these values.
	Negotiated() (width, height int, fps float64)

	// Close releases the device.
	Close() error
}

// PersonDetector runs person-presence inference on a single frame.
// Absence of a detector is a valid runtime configuration, not a startup
// failure; inference may be slow.
type PersonDetector interface {
	// Detect reports whether a person is visible in the frame.
	Detect(ctx context.Context, frame Frame) (bool, error)
}

// VideoSink encodes an ordered frame sequence into a video container.
type VideoSink interface {
	// Write encodes frames at the given rate into path. Partial output on
	// failure is the caller's responsibility to remove.
	Write(ctx context.Context, frames []Frame, fps float64, path string) error
}

// StorageResolver picks the destination directory for artifacts.
type StorageResolver interface {
	// Resolve returns a writable destination directory, preferring
	// removable media and falling back to the local default. The directory
	// is created if missing.
	Resolve() (string, error)
}

// EventSink receives observability events. Implementations must not block
// the caller and must swallow their own failures.
type EventSink interface {
	Emit(event Event)
}

// ArtifactDispatcher accepts artifacts for asynchronous persistence.
type ArtifactDispatcher interface {
	// Submit enqueues an artifact. Never blocks beyond the enqueue;
	// returns ErrDispatcherClosed after shutdown has begun.
	Submit(artifact RecordingArtifact) error

	// InFlight returns the number of writes currently running.
	InFlight() int

	// Queued returns the number of artifacts waiting for a worker.
	Queued() int
}

// RecordingCatalog indexes persisted artifacts.
type RecordingCatalog interface {
	// Save records one persisted artifact.
	Save(ctx context.Context, rec Recording) error

	// List returns the most recent recordings, newest first.
	List(ctx context.Context, limit int) ([]Recording, error)

	// Close releases the underlying store.
	Close() error
}

// KeyProvider abstracts the source of the catalog encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
