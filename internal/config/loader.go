package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/Kargones/errmgr/internal/constants"
	"github.com/Kargones/errmgr/internal/pkg/output"
)

// EnvConfigPath — переменная окружения с путём к yaml файлу.
const EnvConfigPath = "EM_CONFIG"

// DefaultConfigPath — путь к файлу, если EM_CONFIG не задан. Отсутствие
// файла по этому пути не ошибка.
const DefaultConfigPath = "/etc/errmgr/config.yaml"

// ErrInvalidConfig оборачивает ошибки валидации.
var ErrInvalidConfig = errors.New("config: некорректная конфигурация")

// Load загружает конфигурацию. Пустой path означает EM_CONFIG или
// DefaultConfigPath. Явно указанный отсутствующий файл — ошибка.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := &Config{}
	if err := readFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: чтение переменных окружения: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv загружает конфигурацию только из окружения и значений по умолчанию.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: чтение переменных окружения: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("config: чтение %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: разбор %s: %w", path, err)
	}
	return nil
}

// Validate проверяет все секции и собирает ошибки в одну.
func (c *Config) Validate() error {
	var errs []error

	if !isCommand(c.App.Command) {
		errs = append(errs, fmt.Errorf("app.command: неизвестная команда %q", c.App.Command))
	}
	switch strings.ToLower(c.App.OutputFormat) {
	case output.FormatText, output.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("app.outputFormat: неизвестный формат %q", c.App.OutputFormat))
	}
	if strings.TrimSpace(c.App.DataDir) == "" {
		errs = append(errs, errors.New("app.dataDir: пустой путь"))
	}

	lc := c.LoggingConfig()
	if err := lc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if _, err := c.ErrorLogConfig(); err != nil {
		errs = append(errs, fmt.Errorf("errorLog: %w", err))
	}
	if _, err := c.ManagerConfig(); err != nil {
		errs = append(errs, fmt.Errorf("manager: %w", err))
	}
	if _, err := c.Filter(); err != nil {
		errs = append(errs, fmt.Errorf("manager: %w", err))
	}
	if c.Alerting.Enabled {
		ac := c.AlertingConfig()
		if err := ac.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("alerting: %w", err))
		}
	}
	mc := c.MetricsConfig()
	if err := mc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	tc := c.TracingConfig()
	if err := tc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func isCommand(name string) bool {
	for _, cmd := range constants.Commands() {
		if cmd == name {
			return true
		}
	}
	return false
}
