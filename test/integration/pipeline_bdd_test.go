//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/buffer"
	"github.com/Murasan201/entry-security-cam-pi/internal/daemon"
	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
	"github.com/Murasan201/entry-security-cam-pi/internal/infra"
	"github.com/Murasan201/entry-security-cam-pi/internal/usecase"
	"github.com/Murasan201/entry-security-cam-pi/test/fixtures"
)

// switchableDetector reports a person while present is set.
type switchableDetector struct {
	present atomic.Bool
}

func (d *switchableDetector) Detect(ctx context.Context, frame domain.Frame) (bool, error) {
	return d.present.Load(), nil
}

// byteSink writes a marker file per artifact, standing in for the ffmpeg
// encoder.
type byteSink struct {
	failErr error
	partial bool
}

func (s *byteSink) Write(ctx context.Context, frames []domain.Frame, fps float64, path string) error {
	if s.failErr != nil {
		if s.partial {
			_ = os.WriteFile(path, []byte("partial"), 0644)
		}
		return s.failErr
	}
	payload := make([]byte, 0, len(frames))
	for range frames {
		payload = append(payload, 'f')
	}
	return os.WriteFile(path, payload, 0644)
}

// collector is a thread-safe event sink.
type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collector) Emit(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) count(t domain.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

var _ = Describe("Recording Pipeline", func() {
	var (
		mediaRoot string
		media     *fixtures.FakeMediaTree
		detector  *switchableDetector
		events    *collector
		logger    *zap.Logger

		cancelRun context.CancelFunc
		runDone   chan error
	)

	const (
		fps               = 50.0
		detectionInterval = 40 * time.Millisecond
		postEvent         = 300 * time.Millisecond
	)

	BeforeEach(func() {
		mediaRoot = GinkgoT().TempDir()
		media = fixtures.NewFakeMediaTree(mediaRoot)
		detector = &switchableDetector{}
		events = &collector{}
		logger = zap.NewNop()
	})

	startPipeline := func(sink domain.VideoSink, localDir string) *daemon.Capture {
		source := infra.NewSyntheticSource(16, 12, fps)
		Expect(source.Open(context.Background())).To(Succeed())

		ring := buffer.NewRing(100)
		sampler := usecase.NewDetectionSampler(detector, detectionInterval, events, logger)
		resolver := infra.NewRemovableStorageResolver([]string{mediaRoot}, localDir, logger)
		dispatcher := usecase.NewPersistenceDispatcher(sink, resolver, nil, 1, events, logger)
		dispatcher.Start()
		controller := usecase.NewRecordingController(ring, dispatcher, fps, postEvent, events, logger)

		cfg := daemon.DefaultConfig()
		cfg.ReadTimeout = 500 * time.Millisecond
		cfg.DrainTimeout = 5 * time.Second

		capture := daemon.NewCapture(cfg, 0, source, ring, sampler, controller, dispatcher, events, logger)

		ctx, cancel := context.WithCancel(context.Background())
		cancelRun = cancel
		runDone = make(chan error, 1)
		go func() { runDone <- capture.Run(ctx) }()
		return capture
	}

	stopPipeline := func() {
		if cancelRun != nil {
			cancelRun()
			Eventually(runDone, "5s").Should(Receive())
			cancelRun = nil
		}
	}

	AfterEach(func() {
		stopPipeline()
	})

	Describe("event-triggered recording", func() {
		Context("when a person appears and then leaves", func() {
			It("persists one artifact spanning the pre and post event window", func() {
				usb, err := media.AddWritableDrive("usb0")
				Expect(err).NotTo(HaveOccurred())

				capture := startPipeline(&byteSink{}, GinkgoT().TempDir())

				// Let the pre-event buffer fill before anyone shows up
				Eventually(func() int {
					return capture.Status().Buffered
				}, "5s").Should(BeNumerically(">", 10))

				detector.present.Store(true)
				Eventually(func() domain.SessionState {
					return capture.Status().State
				}, "5s").Should(Equal(domain.StateRecording))

				detector.present.Store(false)
				Eventually(func() int {
					return events.count(domain.EventArtifactPersisted)
				}, "10s").Should(Equal(1))

				Expect(events.count(domain.EventSessionStarted)).To(Equal(1))
				Expect(events.count(domain.EventSessionStopped)).To(Equal(1))
				Expect(events.count(domain.EventArtifactFailed)).To(BeZero())

				recordings, err := media.Recordings(usb)
				Expect(err).NotTo(HaveOccurred())
				Expect(recordings).To(HaveLen(1))

				// The artifact holds the buffered pre-event frames too
				info, err := os.Stat(recordings[0])
				Expect(err).NotTo(HaveOccurred())
				Expect(info.Size()).To(BeNumerically(">", 10))

				Eventually(func() domain.SessionState {
					return capture.Status().State
				}, "5s").Should(Equal(domain.StateIdle))
			})
		})

		Context("when presence flaps inside the post-event window", func() {
			It("keeps one continuous session", func() {
				_, err := media.AddWritableDrive("usb0")
				Expect(err).NotTo(HaveOccurred())

				capture := startPipeline(&byteSink{}, GinkgoT().TempDir())

				detector.present.Store(true)
				Eventually(func() domain.SessionState {
					return capture.Status().State
				}, "5s").Should(Equal(domain.StateRecording))

				// Flap faster than the post-event window
				for i := 0; i < 4; i++ {
					detector.present.Store(false)
					time.Sleep(postEvent / 3)
					detector.present.Store(true)
					time.Sleep(postEvent / 3)
				}

				Expect(events.count(domain.EventSessionStarted)).To(Equal(1))
				Expect(events.count(domain.EventArtifactPersisted)).To(BeZero())
				Expect(capture.Status().State).To(Equal(domain.StateRecording))
			})
		})
	})

	Describe("persistence failure", func() {
		It("removes partial output and reports artifact_failed exactly once", func() {
			usb, err := media.AddWritableDrive("usb0")
			Expect(err).NotTo(HaveOccurred())

			startPipeline(&byteSink{failErr: errors.New("emulated encoder failure"), partial: true}, GinkgoT().TempDir())

			detector.present.Store(true)
			time.Sleep(2 * detectionInterval)
			detector.present.Store(false)

			Eventually(func() int {
				return events.count(domain.EventArtifactFailed)
			}, "10s").Should(Equal(1))
			Consistently(func() int {
				return events.count(domain.EventArtifactFailed)
			}, "500ms").Should(Equal(1))

			recordings, err := media.Recordings(usb)
			Expect(err).NotTo(HaveOccurred())
			Expect(recordings).To(BeEmpty(), "no partial file may remain")
		})
	})

	Describe("storage failover", func() {
		It("skips a read-only drive and falls back to the local directory", func() {
			if os.Geteuid() == 0 {
				Skip("directory modes are not enforced for root")
			}
			_, err := media.AddReadOnlyDrive("usb0")
			Expect(err).NotTo(HaveOccurred())
			localDir := GinkgoT().TempDir()

			startPipeline(&byteSink{}, localDir)

			detector.present.Store(true)
			time.Sleep(2 * detectionInterval)
			detector.present.Store(false)

			Eventually(func() int {
				return events.count(domain.EventArtifactPersisted)
			}, "10s").Should(Equal(1))

			matches, err := filepath.Glob(filepath.Join(localDir, "security_recordings", "security_*.mp4"))
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
		})
	})
})
