package audit

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
)

// LogSink escribe los eventos en el log estructurado.
type LogSink struct {
	log zerolog.Logger
}

var _ ports.AuditSink = (*LogSink)(nil)

// NewLogSink crea el sink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, ev ports.AuditEvent) error {
	e := s.log.Info().
		Str("event", ev.AggregateType+"."+ev.Type).
		Str("aggregate_id", ev.AggregateID).
		Time("occurred_at", ev.OccurredAt)
	if ev.ActorID != "" {
		e = e.Str("actor_id", ev.ActorID)
	}
	if len(ev.Data) > 0 {
		e = e.Fields(ev.Data)
	}
	e.Msg("auditoría")
	return nil
}

// MultiSink reparte cada evento a todos los sinks; una falla no impide los demás.
type MultiSink []ports.AuditSink

var _ ports.AuditSink = MultiSink(nil)

func (m MultiSink) Record(ctx context.Context, ev ports.AuditEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
