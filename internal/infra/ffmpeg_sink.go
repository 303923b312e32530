package infra

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// FFmpegSink muxes raw BGR24 frames into an H.264 MP4 by piping them to
// ffmpeg's stdin. Write is synchronous and runs off the capture path,
// inside a dispatcher worker.
type FFmpegSink struct {
	logger *zap.Logger
}

// NewFFmpegSink creates a sink. Returns an error when the ffmpeg binary
// is missing, so startup can fail fast.
func NewFFmpegSink(logger *zap.Logger) (*FFmpegSink, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return &FFmpegSink{logger: logger}, nil
}

// Write encodes frames at the given rate into path. All frames must share
// the first frame's dimensions. Cancelling ctx kills the encoder; the
// caller removes any partial output.
func (s *FFmpegSink) Write(ctx context.Context, frames []domain.Frame, fps float64, path string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %g", fps)
	}
	width, height := frames[0].Width, frames[0].Height

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		path,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open encoder stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}

	writeErr := func() error {
		defer stdin.Close()
		for i, f := range frames {
			if f.Width != width || f.Height != height {
				return fmt.Errorf("frame %d has size %dx%d, want %dx%d",
					i, f.Width, f.Height, width, height)
			}
			if _, err := stdin.Write(f.Data); err != nil {
				return fmt.Errorf("failed to feed frame %d: %w", i, err)
			}
		}
		return nil
	}()

	if err := cmd.Wait(); err != nil {
		if writeErr != nil {
			return fmt.Errorf("encoder failed: %w (after: %v)", err, writeErr)
		}
		return fmt.Errorf("encoder failed: %w", err)
	}
	if writeErr != nil {
		return writeErr
	}

	s.logger.Debug("video encoded",
		zap.String("path", path),
		zap.Int("frames", len(frames)),
		zap.Float64("fps", fps))
	return nil
}

var _ domain.VideoSink = (*FFmpegSink)(nil)
