package infra

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// Stream banner lines look like:
//
//	Stream #0:0: Video: rawvideo ..., 640x480, ..., 30 fps, ...
var (
	bannerSizeRe = regexp.MustCompile(`, (\d{2,5})x(\d{2,5})`)
	bannerFPSRe  = regexp.MustCompile(`, (\d+(?:\.\d+)?) fps`)
)

// FFmpegSource captures raw BGR24 frames from a V4L2 device through an
// ffmpeg pipe. A reader goroutine owns the pipe and delivers frames on a
// channel, so Read can honour its context while the pipe read blocks.
type FFmpegSource struct {
	deviceIndex int
	width       int
	height      int
	fps         float64
	logger      *zap.Logger

	cmd    *exec.Cmd
	frames chan domain.Frame
	errs   chan error

	actualWidth  int
	actualHeight int
	actualFPS    float64

	seq uint64
}

// NewFFmpegSource creates a source for /dev/video<deviceIndex> requesting
// the given format. The device may negotiate different actuals; read them
// back with Negotiated after Open.
func NewFFmpegSource(deviceIndex, width, height int, fps float64, logger *zap.Logger) *FFmpegSource {
	return &FFmpegSource{
		deviceIndex: deviceIndex,
		width:       width,
		height:      height,
		fps:         fps,
		logger:      logger,
	}
}

// Open starts the ffmpeg process and waits for the stream banner to learn
// the negotiated format. Failure to start or to see a banner is fatal.
func (s *FFmpegSource) Open(ctx context.Context) error {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	device := fmt.Sprintf("/dev/video%d", s.deviceIndex)
	s.cmd = exec.Command(ffmpeg,
		"-hide_banner",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", s.width, s.height),
		"-framerate", strconv.FormatFloat(s.fps, 'f', -1, 64),
		"-i", device,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-",
	)

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	stderr, err := s.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stderr: %w", err)
	}

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("failed to open camera %s: %w", device, err)
	}

	// Defaults until the banner says otherwise.
	s.actualWidth, s.actualHeight, s.actualFPS = s.width, s.height, s.fps

	banner := make(chan struct{})
	go s.scanBanner(stderr, banner)

	select {
	case <-banner:
	case <-ctx.Done():
		_ = s.cmd.Process.Kill()
		return ctx.Err()
	case <-time.After(10 * time.Second):
		_ = s.cmd.Process.Kill()
		return fmt.Errorf("failed to open camera %s: no stream within 10s", device)
	}

	s.frames = make(chan domain.Frame)
	s.errs = make(chan error, 1)
	go s.readLoop(stdout)

	s.logger.Info("camera opened",
		zap.String("device", device),
		zap.Int("width", s.actualWidth),
		zap.Int("height", s.actualHeight),
		zap.Float64("fps", s.actualFPS))
	return nil
}

// scanBanner parses negotiated format from ffmpeg's stderr, then keeps
// draining it so the process never blocks on a full pipe.
func (s *FFmpegSource) scanBanner(stderr io.Reader, found chan<- struct{}) {
	sc := bufio.NewScanner(stderr)
	seen := false
	for sc.Scan() {
		line := sc.Text()
		if seen {
			continue
		}
		if m := bannerSizeRe.FindStringSubmatch(line); m != nil {
			if w, err := strconv.Atoi(m[1]); err == nil {
				s.actualWidth = w
			}
			if h, err := strconv.Atoi(m[2]); err == nil {
				s.actualHeight = h
			}
			if m := bannerFPSRe.FindStringSubmatch(line); m != nil {
				if f, err := strconv.ParseFloat(m[1], 64); err == nil && f > 0 {
					s.actualFPS = f
				}
			}
			seen = true
			close(found)
		}
	}
	if !seen {
		close(found)
	}
}

// readLoop pulls fixed-size raw frames off the pipe. EOF means the device
// is gone.
func (s *FFmpegSource) readLoop(stdout io.Reader) {
	frameSize := s.actualWidth * s.actualHeight * 3
	reader := bufio.NewReaderSize(stdout, frameSize)
	for {
		data := make([]byte, frameSize)
		if _, err := io.ReadFull(reader, data); err != nil {
			s.errs <- fmt.Errorf("%w: %v", domain.ErrSourceGone, err)
			close(s.frames)
			return
		}
		s.seq++
		s.frames <- domain.Frame{
			Data:      data,
			Width:     s.actualWidth,
			Height:    s.actualHeight,
			Timestamp: time.Now(),
			Seq:       s.seq,
		}
	}
}

// Read returns the next frame, or ErrSourceGone once the pipe closes.
func (s *FFmpegSource) Read(ctx context.Context) (domain.Frame, error) {
	select {
	case <-ctx.Done():
		return domain.Frame{}, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			select {
			case err := <-s.errs:
				return domain.Frame{}, err
			default:
				return domain.Frame{}, domain.ErrSourceGone
			}
		}
		return frame, nil
	}
}

// Negotiated returns the actual format parsed from the stream banner.
func (s *FFmpegSource) Negotiated() (int, int, float64) {
	return s.actualWidth, s.actualHeight, s.actualFPS
}

// Close terminates the ffmpeg process.
func (s *FFmpegSource) Close() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	return nil
}

var _ domain.FrameSource = (*FFmpegSource)(nil)
