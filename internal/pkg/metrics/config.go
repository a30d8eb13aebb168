package metrics

import (
	"errors"
	"net/url"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/logging"
)

var (
	ErrPushgatewayURLRequired = errors.New("metrics: pushgatewayUrl обязателен при enabled=true")
	ErrPushgatewayURLInvalid  = errors.New("metrics: pushgatewayUrl должен быть URL со схемой и host")
	ErrJobNameRequired        = errors.New("metrics: jobName обязателен")
	ErrInvalidTimeout         = errors.New("metrics: timeout должен быть положительным")
)

// Config — настройки Prometheus метрик pipeline. Метрики копятся в
// собственном registry и отправляются в Pushgateway вызовом Push.
type Config struct {
	Enabled        bool
	PushgatewayURL string
	JobName        string
	Timeout        time.Duration
	// InstanceLabel — label instance; пусто — hostname.
	InstanceLabel string
}

// DefaultConfig возвращает выключенные метрики.
func DefaultConfig() Config {
	return Config{JobName: "errmgr", Timeout: 10 * time.Second}
}

// Validate проверяет конфигурацию включённых метрик.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.PushgatewayURL == "" {
		return ErrPushgatewayURLRequired
	}
	if u, err := url.Parse(c.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
		return ErrPushgatewayURLInvalid
	}
	if c.JobName == "" {
		return ErrJobNameRequired
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// NewCollector возвращает NopCollector для выключенных метрик и
// PrometheusCollector для включённых.
func NewCollector(config Config, logger logging.Logger) (Collector, error) {
	if !config.Enabled {
		return NewNopCollector(), nil
	}
	return NewPrometheusCollector(config, logger)
}
