package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Kargones/errmgr/internal/pkg/logging"
)

// Тесты меняют глобальный TracerProvider: без t.Parallel().

func TestConfigValidate(t *testing.T) {
	valid := Config{Enabled: true, Endpoint: "http://collector:4318", ServiceName: "errmgr", Timeout: time.Second, SamplingRate: 0.5}
	require.NoError(t, valid.Validate())

	disabled := Config{}
	require.NoError(t, disabled.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no endpoint", func(c *Config) { c.Endpoint = "" }, ErrEndpointRequired},
		{"no host", func(c *Config) { c.Endpoint = "collector" }, ErrEndpointInvalid},
		{"no service", func(c *Config) { c.ServiceName = "" }, ErrServiceNameRequired},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrTimeoutInvalid},
		{"rate above one", func(c *Config) { c.SamplingRate = 1.5 }, ErrSamplingRateInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "errmgr", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	shutdown, err := NewTracerProvider(Config{}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewTracerProvider_Invalid(t *testing.T) {
	_, err := NewTracerProvider(Config{Enabled: true}, logging.NewNopLogger())
	assert.ErrorIs(t, err, ErrEndpointRequired)
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := NewTracerProvider(Config{
		Enabled:      true,
		Endpoint:     "http://127.0.0.1:1",
		ServiceName:  "errmgr-test",
		Insecure:     true,
		Timeout:      50 * time.Millisecond,
		SamplingRate: 1,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "collector:4318", hostPort("http://collector:4318/v1/traces"))
	assert.Equal(t, "collector:4318", hostPort("collector:4318"))
}

func TestGenerateTraceID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := GenerateTraceID()
		require.Len(t, id, 32)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestTraceIDContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
	//nolint:staticcheck // проверка nil context
	assert.Empty(t, TraceIDFromContext(nil))
	ctx := WithTraceID(context.Background(), "abc")
	assert.Equal(t, "abc", TraceIDFromContext(ctx))
}

func TestContextWithOTelTraceID_SpanJoinsTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	id := GenerateTraceID()
	_, span := StartSpan(ContextWithOTelTraceID(context.Background(), id), "errorlog", "flush")
	EndSpan(span, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, id, ended[0].SpanContext().TraceID().String())

	bad := ContextWithOTelTraceID(context.Background(), "not-hex")
	assert.Equal(t, context.Background(), bad)
}
