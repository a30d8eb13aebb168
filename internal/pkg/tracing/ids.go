package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type traceIDKey struct{}

var fallbackSeq atomic.Uint64

// GenerateTraceID возвращает 32 hex-символа, совместимые с W3C trace id.
func GenerateTraceID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%016x%016x", uint64(time.Now().UnixNano()), fallbackSeq.Add(1))
	}
	return hex.EncodeToString(b[:])
}

// WithTraceID сохраняет trace id в ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext возвращает trace id из WithTraceID или пустую строку.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// ContextWithOTelTraceID делает id trace id удалённого родителя, чтобы
// spans из ctx попадали в тот же trace. Невалидный id игнорируется.
func ContextWithOTelTraceID(ctx context.Context, id string) context.Context {
	tid, err := trace.TraceIDFromHex(id)
	if err != nil {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
}
