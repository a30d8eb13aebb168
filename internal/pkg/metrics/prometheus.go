package metrics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/urlutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "errmgr"

// PrometheusCollector реализует Collector с Prometheus метриками.
// Отправляет метрики в Pushgateway при вызове Push().
type PrometheusCollector struct {
	config   Config
	logger   logging.Logger
	registry *prometheus.Registry

	errorsTotal      *prometheus.CounterVec
	thresholdHits    *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	recoveryDuration *prometheus.HistogramVec
	recoveryRejected prometheus.Counter
	logEntries       *prometheus.CounterVec
	logRotations     prometheus.Counter
	crashReports     *prometheus.CounterVec
	alertsFired      *prometheus.CounterVec

	// Instance label (hostname)
	instance string
}

// NewPrometheusCollector создаёт PrometheusCollector с указанной конфигурацией.
// Регистрирует метрики с префиксом errmgr_:
//   - errors_total, threshold_hits_total, queue_depth
//   - recovery_session_duration_seconds, recovery_rejected_total
//   - errorlog_entries_total, errorlog_rotations_total
//   - crash_reports_total, alerts_fired_total
func NewPrometheusCollector(config Config, logger logging.Logger) (*PrometheusCollector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	instance := config.InstanceLabel
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			logger.Warn("не удалось получить hostname для metrics instance label, используется 'unknown'",
				"error", err.Error())
			hostname = "unknown"
		}
		instance = hostname
	}

	c := &PrometheusCollector{
		config:   config,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		instance: instance,
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors passed through the pipeline",
		}, []string{"category", "severity", "outcome"}),
		thresholdHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_hits_total",
			Help:      "Total number of fired error thresholds",
		}, []string{"category", "action"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current depth of the error processing queue",
		}),
		// Buckets покрывают мгновенное восстановление и сессии с несколькими задержками.
		recoveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recovery_session_duration_seconds",
			Help:      "Duration of recovery sessions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"code", "status"}),
		recoveryRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_rejected_total",
			Help:      "Recovery sessions rejected by the concurrency cap",
		}),
		logEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errorlog_entries_total",
			Help:      "Entries written to the error log",
		}, []string{"level"}),
		logRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errorlog_rotations_total",
			Help:      "Error log file rotations",
		}),
		crashReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crash_reports_total",
			Help:      "Crash reports written",
		}, []string{"remote"}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Alert rules fired",
		}, []string{"rule", "severity"}),
	}

	// Используем Register вместо MustRegister для избежания panic.
	collectors := []prometheus.Collector{
		c.errorsTotal, c.thresholdHits, c.queueDepth, c.recoveryDuration,
		c.recoveryRejected, c.logEntries, c.logRotations, c.crashReports, c.alertsFired,
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("ошибка регистрации метрики: %w", err)
		}
	}

	return c, nil
}

// maxLabelLength — максимальная длина значения label для защиты от cardinality explosion.
const maxLabelLength = 128

// sanitizeLabel обрезает значение label до допустимой длины и удаляет
// контрольные символы (\n, \r, \0), которые могут нарушить Prometheus text format.
// Обрезка выполняется по рунам (не по байтам) для корректной работы с UTF-8.
func sanitizeLabel(value string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		return r
	}, value)

	runes := []rune(clean)
	if len(runes) > maxLabelLength {
		return string(runes[:maxLabelLength])
	}
	return clean
}

// RecordErrorHandled увеличивает errors_total.
func (c *PrometheusCollector) RecordErrorHandled(category, severity, outcome string) {
	c.errorsTotal.WithLabelValues(sanitizeLabel(category), sanitizeLabel(severity), sanitizeLabel(outcome)).Inc()
}

// RecordThresholdHit увеличивает threshold_hits_total.
func (c *PrometheusCollector) RecordThresholdHit(category, action string) {
	c.thresholdHits.WithLabelValues(sanitizeLabel(category), sanitizeLabel(action)).Inc()
}

// SetQueueDepth обновляет queue_depth.
func (c *PrometheusCollector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordRecoverySession записывает длительность и результат сессии.
func (c *PrometheusCollector) RecordRecoverySession(code string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.recoveryDuration.WithLabelValues(sanitizeLabel(code), status).Observe(duration.Seconds())

	c.logger.Debug("metrics: recovery session",
		"code", code,
		"success", success,
		"duration_ms", duration.Milliseconds(),
	)
}

// RecordRecoveryRejected увеличивает recovery_rejected_total.
func (c *PrometheusCollector) RecordRecoveryRejected() {
	c.recoveryRejected.Inc()
}

// RecordLogEntry увеличивает errorlog_entries_total.
func (c *PrometheusCollector) RecordLogEntry(level string) {
	c.logEntries.WithLabelValues(sanitizeLabel(level)).Inc()
}

// RecordLogRotation увеличивает errorlog_rotations_total.
func (c *PrometheusCollector) RecordLogRotation() {
	c.logRotations.Inc()
}

// RecordCrashReport увеличивает crash_reports_total.
func (c *PrometheusCollector) RecordCrashReport(remote string) {
	c.crashReports.WithLabelValues(sanitizeLabel(remote)).Inc()
}

// RecordAlertFired увеличивает alerts_fired_total.
func (c *PrometheusCollector) RecordAlertFired(rule, severity string) {
	c.alertsFired.WithLabelValues(sanitizeLabel(rule), sanitizeLabel(severity)).Inc()
}

// Push отправляет метрики в Pushgateway.
// Возвращает nil даже при ошибке — ошибки логируются.
func (c *PrometheusCollector) Push(ctx context.Context) error {
	if c.config.PushgatewayURL == "" {
		c.logger.Debug("metrics: pushgateway URL not configured, skipping push")
		return nil
	}

	select {
	case <-ctx.Done():
		c.logger.Debug("metrics push отменён")
		return nil
	default:
	}

	pusher := push.New(c.config.PushgatewayURL, c.config.JobName).
		Gatherer(c.registry).
		Grouping("instance", c.instance)

	pushCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := pusher.PushContext(pushCtx); err != nil {
		c.logger.Error("ошибка отправки метрик в Pushgateway",
			"error", err.Error(),
			"url", urlutil.MaskURL(c.config.PushgatewayURL),
			"job", c.config.JobName,
		)
		return nil
	}

	c.logger.Info("метрики отправлены в Pushgateway",
		"url", urlutil.MaskURL(c.config.PushgatewayURL),
		"job", c.config.JobName,
		"instance", c.instance,
	)
	return nil
}

// GetRegistry возвращает внутренний registry для тестирования.
func (c *PrometheusCollector) GetRegistry() *prometheus.Registry {
	return c.registry
}
