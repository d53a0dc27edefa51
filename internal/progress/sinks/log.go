package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/progress"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs every event. Failure stages log at warn.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("sweep_id", evt.SweepID),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Zone != "" {
			fields = append(fields, zap.String("zone", evt.Zone))
		}
		if evt.Results > 0 {
			fields = append(fields, zap.Int("results", evt.Results))
		}
		if evt.Risks > 0 {
			fields = append(fields, zap.Int("risks", evt.Risks))
		}
		if evt.Alerts > 0 {
			fields = append(fields, zap.Int("alerts", evt.Alerts))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == progress.StageZoneFailed || evt.Stage == progress.StageSweepError {
			s.logger.Warn("progress event", fields...)
			continue
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
