package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// PersistenceDispatcher moves artifacts from the capture path to the
// video sink. Submit only enqueues; a bounded pool of workers (default 1)
// drains the queue in FIFO order. Workers read only value-copied artifacts
// and never touch the live ring buffer.
type PersistenceDispatcher struct {
	sink    domain.VideoSink
	storage domain.StorageResolver
	catalog domain.RecordingCatalog // nil disables the index
	events  domain.EventSink
	logger  *zap.Logger
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []domain.RecordingArtifact
	inFlight int
	closed   bool

	wg sync.WaitGroup
}

// NewPersistenceDispatcher creates a dispatcher with the given worker
// bound. Catalog may be nil.
func NewPersistenceDispatcher(
	sink domain.VideoSink,
	storage domain.StorageResolver,
	catalog domain.RecordingCatalog,
	workers int,
	events domain.EventSink,
	logger *zap.Logger,
) *PersistenceDispatcher {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &PersistenceDispatcher{
		sink:    sink,
		storage: storage,
		catalog: catalog,
		events:  events,
		logger:  logger,
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the worker pool.
func (d *PersistenceDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Submit enqueues an artifact for persistence. Never blocks beyond the
// enqueue; returns ErrDispatcherClosed once shutdown has begun. Excess
// submissions queue FIFO, none are dropped.
func (d *PersistenceDispatcher) Submit(artifact domain.RecordingArtifact) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return domain.ErrDispatcherClosed
	}
	d.queue = append(d.queue, artifact)
	d.cond.Signal()
	return nil
}

// InFlight returns the number of writes currently running.
func (d *PersistenceDispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Queued returns the number of artifacts waiting for a worker.
func (d *PersistenceDispatcher) Queued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close stops accepting submissions and lets the workers drain the queue.
// When ctx expires first, queued artifacts are abandoned, in-flight writes
// are cancelled (their partial output is removed by the failure path), and
// the abandoned count is logged.
func (d *PersistenceDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.mu.Lock()
		abandoned := len(d.queue)
		d.queue = nil
		d.cond.Broadcast()
		d.mu.Unlock()
		d.cancel()
		if abandoned > 0 {
			d.logger.Warn("persistence drain deadline exceeded, abandoning queued artifacts",
				zap.Int("abandoned", abandoned))
		}
		<-done
		return ctx.Err()
	}
}

func (d *PersistenceDispatcher) worker() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		artifact := d.queue[0]
		d.queue = d.queue[1:]
		d.inFlight++
		d.mu.Unlock()

		d.persist(artifact)

		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}
}

// persist writes one artifact. Failures are surfaced via artifact_failed
// and never retried: re-running a multi-second encode under load risks an
// unbounded backlog, so the operator decides instead.
func (d *PersistenceDispatcher) persist(artifact domain.RecordingArtifact) {
	dir, err := d.storage.Resolve()
	if err != nil {
		d.fail(artifact, "", err)
		return
	}
	path := filepath.Join(dir, artifact.Filename)

	if err := d.sink.Write(d.ctx, artifact.Frames, artifact.FPS, path); err != nil {
		// No partial file may remain at the destination.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			d.logger.Warn("failed to remove partial output",
				zap.String("path", path),
				zap.Error(rmErr))
		}
		d.fail(artifact, path, err)
		return
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	d.logger.Info("artifact persisted",
		zap.String("session_id", artifact.SessionID),
		zap.String("path", path),
		zap.Int("frames", len(artifact.Frames)),
		zap.Int64("size_bytes", size))
	d.events.Emit(domain.Event{
		Type:      domain.EventArtifactPersisted,
		Timestamp: artifact.EndedAt,
		SessionID: artifact.SessionID,
		Path:      path,
	})

	if d.catalog != nil {
		rec := domain.Recording{
			ID:         artifact.Filename,
			SessionID:  artifact.SessionID,
			Path:       path,
			StartedAt:  artifact.StartedAt,
			EndedAt:    artifact.EndedAt,
			FrameCount: len(artifact.Frames),
			SizeBytes:  size,
			Trigger:    string(artifact.Trigger),
		}
		if err := d.catalog.Save(d.ctx, rec); err != nil {
			// Index failure does not undo a successful persist.
			d.logger.Warn("failed to index recording",
				zap.String("path", path),
				zap.Error(err))
		}
	}
}

func (d *PersistenceDispatcher) fail(artifact domain.RecordingArtifact, path string, err error) {
	d.logger.Error("artifact persistence failed",
		zap.String("session_id", artifact.SessionID),
		zap.String("path", path),
		zap.Error(err))
	d.events.Emit(domain.Event{
		Type:      domain.EventArtifactFailed,
		Timestamp: artifact.EndedAt,
		SessionID: artifact.SessionID,
		Path:      path,
		Reason:    err.Error(),
	})
}

var _ domain.ArtifactDispatcher = (*PersistenceDispatcher)(nil)
