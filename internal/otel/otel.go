package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/viewlink/internal/eventbus"
	events "github.com/hanpama/viewlink/internal/events"
	opid "github.com/hanpama/viewlink/internal/opid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("viewlink")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer    trace.Tracer
	opSpans   sync.Map // opid -> trace.Span
	callSpans sync.Map // opid -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
		id, _ := opid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "viewlink.operation")
		span.SetAttributes(
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationType),
		)
		s.opSpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
		id, _ := opid.FromContext(ctx)
		v, ok := s.opSpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.ViewCallStart) {
		id, _ := opid.FromContext(ctx)
		parent := ctx
		if v, ok := s.opSpans.Load(id); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "viewlink.view_call")
		span.SetAttributes(
			attribute.String("viewlink.view", e.View),
			attribute.String("viewlink.method", e.Method),
		)
		s.callSpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.ViewCallFinish) {
		id, _ := opid.FromContext(ctx)
		v, ok := s.callSpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})
}
