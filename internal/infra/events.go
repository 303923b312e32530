package infra

import (
	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// ZapEventSink renders every domain event as a structured log record.
type ZapEventSink struct {
	logger *zap.Logger
}

// NewZapEventSink creates a sink writing to the given logger.
func NewZapEventSink(logger *zap.Logger) *ZapEventSink {
	return &ZapEventSink{logger: logger}
}

// Emit logs the event. Never fails, never blocks meaningfully.
func (s *ZapEventSink) Emit(event domain.Event) {
	fields := []zap.Field{
		zap.Time("event_time", event.Timestamp),
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.Path != "" {
		fields = append(fields, zap.String("path", event.Path))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}

	switch event.Type {
	case domain.EventArtifactFailed, domain.EventDetectorError, domain.EventFrameReadError:
		s.logger.Warn(string(event.Type), fields...)
	default:
		s.logger.Info(string(event.Type), fields...)
	}
}

// FanOutSink delivers each event to every child sink in order.
type FanOutSink struct {
	sinks []domain.EventSink
}

// NewFanOutSink combines sinks. Nil entries are skipped.
func NewFanOutSink(sinks ...domain.EventSink) *FanOutSink {
	var out []domain.EventSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &FanOutSink{sinks: out}
}

// Emit fans the event out.
func (f *FanOutSink) Emit(event domain.Event) {
	for _, s := range f.sinks {
		s.Emit(event)
	}
}

var (
	_ domain.EventSink = (*ZapEventSink)(nil)
	_ domain.EventSink = (*FanOutSink)(nil)
)
