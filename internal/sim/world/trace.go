package world

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracedStep wraps Step in one span per presentation event.
func (s *Session) tracedStep(ctx context.Context, ev Event) {
	attrs := []attribute.KeyValue{
		attribute.String("viceroy.session", s.id),
		attribute.String("viceroy.client", ev.ClientID),
		attribute.Int("viceroy.turn", s.turn),
	}
	if ev.Kind == EventCommand {
		attrs = append(attrs,
			attribute.String("viceroy.action", string(ev.Action)),
			attribute.String("viceroy.unit", ev.UnitID),
		)
	}
	_, span := s.tracer.Start(ctx, "session."+strings.ToLower(string(ev.Kind)), trace.WithAttributes(attrs...))
	defer span.End()

	s.Step(ev)
	span.SetAttributes(
		attribute.Bool("viceroy.busy", s.engine.Busy()),
		attribute.Int("viceroy.queued", s.queue.Len()),
	)
}
