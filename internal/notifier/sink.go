package notifier

import (
	"context"

	"github.com/rs/zerolog"

	"TargetSentinel/internal/model"
)

// Sink delivers alerts to a downstream channel. Transports (email,
// webhook, portal) live outside this engine; the log sink is the
// built-in default.
type Sink interface {
	Deliver(ctx context.Context, alerts ...model.Alert) error
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Deliver(_ context.Context, alerts ...model.Alert) error {
	for _, alert := range alerts {
		s.log.Info().
			Str("company", alert.CompanyID).
			Stringer("severity", alert.Severity).
			Strs("reasons", alert.Reasons).
			Msg("alert")
	}
	return nil
}
