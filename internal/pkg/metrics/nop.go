package metrics

import (
	"context"
	"time"
)

// NopCollector — no-op реализация Collector.
// Используется когда метрики отключены (Config.Enabled = false).
type NopCollector struct{}

// NewNopCollector создаёт NopCollector.
func NewNopCollector() *NopCollector {
	return &NopCollector{}
}

// RecordErrorHandled — no-op.
func (c *NopCollector) RecordErrorHandled(_, _, _ string) {}

// RecordThresholdHit — no-op.
func (c *NopCollector) RecordThresholdHit(_, _ string) {}

// SetQueueDepth — no-op.
func (c *NopCollector) SetQueueDepth(_ int) {}

// RecordRecoverySession — no-op.
func (c *NopCollector) RecordRecoverySession(_ string, _ bool, _ time.Duration) {}

// RecordRecoveryRejected — no-op.
func (c *NopCollector) RecordRecoveryRejected() {}

// RecordLogEntry — no-op.
func (c *NopCollector) RecordLogEntry(_ string) {}

// RecordLogRotation — no-op.
func (c *NopCollector) RecordLogRotation() {}

// RecordCrashReport — no-op.
func (c *NopCollector) RecordCrashReport(_ string) {}

// RecordAlertFired — no-op.
func (c *NopCollector) RecordAlertFired(_, _ string) {}

// Push — no-op, всегда возвращает nil.
func (c *NopCollector) Push(_ context.Context) error {
	return nil
}
