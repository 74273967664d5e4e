package obs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating an OpenTelemetry span per
// event, with event.Meta flattened to span attributes. Spans are started
// and ended immediately since events are instantaneous, not durations.
// Mirrors langgraph-go's emit.OTelEmitter, scoped to workflow/node ids.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter using tracer (e.g. otel.Tracer("dagflow")).
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	o.span(context.Background(), event)
}

func (o *OTelEmitter) span(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("workflow_id", event.WorkflowID),
		attribute.String("node_id", event.NodeID),
	)
	for k, v := range event.Meta {
		span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", v)))
	}
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		o.span(ctx, e)
	}
	return nil
}

func (o *OTelEmitter) Flush(context.Context) error { return nil }
