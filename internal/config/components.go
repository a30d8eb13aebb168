package config

import (
	"fmt"
	"path/filepath"

	"github.com/Kargones/errmgr/internal/adapter/mssql"
	"github.com/Kargones/errmgr/internal/analytics"
	"github.com/Kargones/errmgr/internal/constants"
	"github.com/Kargones/errmgr/internal/crash"
	"github.com/Kargones/errmgr/internal/errorlog"
	"github.com/Kargones/errmgr/internal/errormanager"
	"github.com/Kargones/errmgr/internal/pkg/alerting"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/metrics"
	"github.com/Kargones/errmgr/internal/pkg/tracing"
	"github.com/Kargones/errmgr/internal/recovery"
)

const bytesPerMB = 1024 * 1024

// LoggingConfig возвращает настройки диагностического журнала.
func (c *Config) LoggingConfig() logging.Config {
	l := c.Logging
	return logging.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		FilePath:   l.FilePath,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
		AddSource:  l.AddSource,
	}
}

// ErrorLogConfig возвращает настройки журнала ошибок.
func (c *Config) ErrorLogConfig() (errorlog.Config, error) {
	e := c.ErrorLog
	level, err := apperrors.ParseSeverity(e.Level)
	if err != nil {
		return errorlog.Config{}, err
	}
	dir := e.Dir
	if dir == "" {
		dir = filepath.Join(c.App.DataDir, "logs")
	}
	cfg := errorlog.Config{
		Dir:                   dir,
		FileName:              e.FileName,
		Format:                e.Format,
		Level:                 level,
		MaxFileSize:           e.MaxFileSize,
		MaxFiles:              e.MaxFiles,
		FlushInterval:         e.FlushInterval,
		RotationCheckInterval: e.RotationCheckInterval,
		BufferSize:            e.BufferSize,
	}
	if err := cfg.Validate(); err != nil {
		return errorlog.Config{}, err
	}
	return cfg, nil
}

// CrashConfig возвращает настройки Crash Reporter.
func (c *Config) CrashConfig() crash.Config {
	r := c.Reporting
	dir := r.Dir
	if dir == "" {
		dir = filepath.Join(c.App.DataDir, "crashes")
	}
	return crash.Config{
		Dir:            dir,
		Endpoint:       r.Endpoint,
		Token:          r.Token,
		Timeout:        r.Timeout,
		Retention:      r.Retention,
		SweepInterval:  r.SweepInterval,
		MaxUserActions: r.MaxUserActions,
		AppVersion:     constants.Version,
	}
}

// RecoveryConfig возвращает настройки Recovery Manager.
func (c *Config) RecoveryConfig() recovery.Config {
	return recovery.Config{
		MaxConcurrent: c.Recovery.MaxConcurrent,
		HistorySize:   c.Recovery.HistorySize,
	}
}

// RecoveryDefaults возвращает параметры стандартных действий. Publisher,
// HTTPClient и DB заполняет вызывающий.
func (c *Config) RecoveryDefaults() recovery.Defaults {
	r := c.Recovery
	return recovery.Defaults{
		ProbeURL:        r.ProbeURL,
		MaxRetries:      r.MaxRetries,
		Delay:           r.Delay,
		Timeout:         r.Timeout,
		FallbackEnabled: !r.DisableFallback,
	}
}

// ProbeOptions возвращает параметры проверки базы данных. ok == false,
// если сервер не задан.
func (c *Config) ProbeOptions() (opts mssql.Options, ok bool) {
	d := c.Recovery.Database
	if d.Server == "" {
		return mssql.Options{}, false
	}
	return mssql.Options{
		Server:         d.Server,
		Port:           d.Port,
		User:           d.User,
		Password:       d.Password,
		Database:       d.Database,
		Timeout:        d.Timeout,
		DisableEncrypt: d.DisableEncrypt,
	}, true
}

// parseThresholds разбирает пороги из файла.
func (c *Config) parseThresholds() ([]errormanager.Threshold, error) {
	out := make([]errormanager.Threshold, 0, len(c.Thresholds))
	for i, tc := range c.Thresholds {
		sev, err := apperrors.ParseSeverity(tc.Severity)
		if err != nil {
			return nil, fmt.Errorf("thresholds[%d]: %w", i, err)
		}
		action, err := errormanager.ParseThresholdAction(tc.Action)
		if err != nil {
			return nil, fmt.Errorf("thresholds[%d]: %w", i, err)
		}
		th := errormanager.Threshold{
			Category: apperrors.Category(tc.Category),
			Severity: sev,
			Count:    tc.Count,
			Window:   tc.Window,
			Action:   action,
		}
		if err := th.Validate(); err != nil {
			return nil, fmt.Errorf("thresholds[%d]: %w", i, err)
		}
		out = append(out, th)
	}
	return out, nil
}

// ManagerConfig возвращает настройки Error Manager вместе с порогами.
func (c *Config) ManagerConfig() (errormanager.Config, error) {
	thresholds, err := c.parseThresholds()
	if err != nil {
		return errormanager.Config{}, err
	}
	return errormanager.Config{
		QueueSize:            c.Manager.QueueSize,
		RetryDelay:           c.Manager.RetryDelay,
		MaxRetries:           c.Manager.MaxRetries,
		ShowTechnicalDetails: c.Dialog.ShowTechnicalDetails,
		AutoClose:            c.Dialog.AutoClose,
		MaxPendingDialogs:    c.Dialog.MaxPending,
		Thresholds:           thresholds,
	}, nil
}

// Filter возвращает фильтр по уровням и игнорируемым кодам.
func (c *Config) Filter() (*errormanager.DefaultFilter, error) {
	f := errormanager.NewDefaultFilter()
	levels := []struct {
		name  string
		value string
		dst   *apperrors.Severity
	}{
		{"logLevel", c.Manager.LogLevel, &f.LogLevel},
		{"reportLevel", c.Manager.ReportLevel, &f.ReportLevel},
		{"notifyLevel", c.Manager.NotifyLevel, &f.NotifyLevel},
	}
	for _, l := range levels {
		if l.value == "" {
			continue
		}
		sev, err := apperrors.ParseSeverity(l.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.name, err)
		}
		*l.dst = sev
	}
	for _, code := range c.Manager.IgnoreCodes {
		f.IgnoreCodes = append(f.IgnoreCodes, apperrors.Code(code))
	}
	return f, nil
}

// AnalyticsConfig возвращает настройки Error Analytics.
func (c *Config) AnalyticsConfig() analytics.Config {
	a := c.Analytics
	return analytics.Config{
		HistorySize:         a.HistorySize,
		CacheTTL:            a.CacheTTL,
		AlertInterval:       a.AlertInterval,
		EstimatedOperations: a.EstimatedOperations,
		TopN:                a.TopN,
		MemoryThreshold:     a.MemoryThresholdMB * bytesPerMB,
		CPUThreshold:        a.CPUThreshold,
		SlowOperation:       a.SlowOperation,
		DisableDefaultRules: a.DisableDefaultRules,
	}
}

// AlertingConfig возвращает настройки каналов доставки алертов.
func (c *Config) AlertingConfig() alerting.Config {
	a := c.Alerting
	cfg := alerting.DefaultConfig()
	cfg.Enabled = a.Enabled
	if a.RateLimitWindow > 0 {
		cfg.RateLimitWindow = a.RateLimitWindow
	}
	cfg.Email = alerting.EmailConfig{
		Enabled:         a.Email.Enabled,
		SMTPHost:        a.Email.SMTPHost,
		SMTPPort:        a.Email.SMTPPort,
		SMTPUser:        a.Email.SMTPUser,
		SMTPPassword:    a.Email.SMTPPassword,
		UseTLS:          !a.Email.DisableTLS,
		From:            a.Email.From,
		To:              a.Email.To,
		SubjectTemplate: a.Email.SubjectTemplate,
		Timeout:         a.Email.Timeout,
	}
	if cfg.Email.SubjectTemplate == "" {
		cfg.Email.SubjectTemplate = alerting.DefaultSubjectTemplate
	}
	cfg.Webhook = alerting.WebhookConfig{
		Enabled:    a.Webhook.Enabled,
		URLs:       a.Webhook.URLs,
		Headers:    a.Webhook.Headers,
		Timeout:    a.Webhook.Timeout,
		MaxRetries: a.Webhook.MaxRetries,
	}
	return cfg
}

// AlertingRules возвращает правила фильтрации алертов.
func (c *Config) AlertingRules() alerting.RulesConfig {
	return c.Alerting.Rules
}

// MetricsConfig возвращает настройки Pushgateway.
func (c *Config) MetricsConfig() metrics.Config {
	m := c.Metrics
	return metrics.Config{
		Enabled:        m.Enabled,
		PushgatewayURL: m.PushgatewayURL,
		JobName:        m.JobName,
		Timeout:        m.Timeout,
		InstanceLabel:  m.InstanceLabel,
	}
}

// TracingConfig возвращает настройки OpenTelemetry.
func (c *Config) TracingConfig() tracing.Config {
	t := c.Tracing
	return tracing.Config{
		Enabled:      t.Enabled,
		Endpoint:     t.Endpoint,
		ServiceName:  t.ServiceName,
		Version:      constants.Version,
		Environment:  c.App.Environment,
		Insecure:     t.Insecure,
		Timeout:      t.Timeout,
		SamplingRate: t.SamplingRate,
	}
}
