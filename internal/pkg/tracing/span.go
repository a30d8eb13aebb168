package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationPrefix = "github.com/Kargones/errmgr/"

// StartSpan начинает span в глобальном TracerProvider.
// component — имя пакета pipeline (errormanager, recovery, crash, ...).
// При выключенном трейсинге otel возвращает no-op span.
func StartSpan(ctx context.Context, component, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationPrefix+component).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan завершает span, помечая его ошибкой если err != nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CorrelationID возвращает идентификатор корреляции для ctx: trace ID
// активного span, затем trace ID из WithTraceID, иначе новый GenerateTraceID.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if id := TraceIDFromContext(ctx); id != "" {
		return id
	}
	return GenerateTraceID()
}
