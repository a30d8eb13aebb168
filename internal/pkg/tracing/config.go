package tracing

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	ErrEndpointRequired    = errors.New("tracing: endpoint обязателен при enabled=true")
	ErrEndpointInvalid     = errors.New("tracing: endpoint должен быть URL с host, например http://collector:4318")
	ErrServiceNameRequired = errors.New("tracing: serviceName обязателен")
	ErrTimeoutInvalid      = errors.New("tracing: timeout должен быть положительным")
	ErrSamplingRateInvalid = errors.New("tracing: samplingRate должен быть в диапазоне [0, 1]")
)

// Config — настройки экспорта трейсов по OTLP HTTP.
type Config struct {
	Enabled bool
	// Endpoint — URL коллектора; используется только host:port.
	Endpoint    string
	ServiceName string
	Version     string
	Environment string
	// Insecure отключает TLS при экспорте.
	Insecure     bool
	Timeout      time.Duration
	SamplingRate float64
}

// DefaultConfig возвращает выключенный трейсинг с разумными значениями.
func DefaultConfig() Config {
	return Config{
		ServiceName:  "errmgr",
		Environment:  "production",
		Timeout:      5 * time.Second,
		SamplingRate: 1.0,
	}
}

// Validate проверяет конфигурацию включённого трейсинга.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Endpoint == "":
		return ErrEndpointRequired
	case c.ServiceName == "":
		return ErrServiceNameRequired
	case c.Timeout <= 0:
		return ErrTimeoutInvalid
	case c.SamplingRate < 0 || c.SamplingRate > 1:
		return fmt.Errorf("%w: %g", ErrSamplingRateInvalid, c.SamplingRate)
	}
	if u, err := url.Parse(c.Endpoint); err != nil || u.Host == "" {
		return ErrEndpointInvalid
	}
	return nil
}
