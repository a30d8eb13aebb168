// Package metrics предоставляет интерфейсы и реализации для сбора метрик
// pipeline обработки ошибок и их отправки в Prometheus Pushgateway.
//
// Пакет следует общим паттернам проекта:
//   - Interface Segregation: Collector interface для абстракции
//   - Factory pattern: NewCollector выбирает реализацию на основе конфигурации
//   - Graceful degradation: NopCollector при отключённых метриках
package metrics

import (
	"context"
	"time"
)

// Collector определяет интерфейс для сбора метрик pipeline.
// Реализации: PrometheusCollector (активный) и NopCollector (no-op).
type Collector interface {
	// RecordErrorHandled записывает обработанную Error Manager ошибку.
	// outcome — "handled", "recovered", "filtered" или "failed".
	RecordErrorHandled(category, severity, outcome string)

	// RecordThresholdHit записывает срабатывание порога.
	RecordThresholdHit(category, action string)

	// SetQueueDepth обновляет текущую глубину очереди обработки.
	SetQueueDepth(depth int)

	// RecordRecoverySession записывает завершённую сессию восстановления.
	RecordRecoverySession(code string, success bool, duration time.Duration)

	// RecordRecoveryRejected записывает отказ из-за лимита одновременных сессий.
	RecordRecoveryRejected()

	// RecordLogEntry записывает запись в журнал ошибок.
	RecordLogEntry(level string)

	// RecordLogRotation записывает ротацию файла журнала.
	RecordLogRotation()

	// RecordCrashReport записывает созданный отчёт об аварии.
	// remote — "sent", "failed" или "disabled".
	RecordCrashReport(remote string)

	// RecordAlertFired записывает срабатывание правила алертинга.
	RecordAlertFired(rule, severity string)

	// Push отправляет метрики в Pushgateway.
	// Возвращает nil даже при ошибке — ошибки логируются внутри реализации.
	Push(ctx context.Context) error
}
