package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errmgr/internal/errormanager"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "run", cfg.App.Command)
	assert.Equal(t, "/var/lib/errmgr", cfg.App.DataDir)
	assert.Equal(t, 1000, cfg.Manager.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Dialog.AutoClose)
	assert.Empty(t, cfg.Thresholds)

	el, err := cfg.ErrorLogConfig()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/errmgr/logs", el.Dir)
	assert.Equal(t, apperrors.SeverityLow, el.Level)
	assert.Equal(t, "/var/lib/errmgr/crashes", cfg.CrashConfig().Dir)

	assert.True(t, cfg.RecoveryDefaults().FallbackEnabled)
	assert.True(t, cfg.AlertingConfig().Email.UseTLS)
	_, ok := cfg.ProbeOptions()
	assert.False(t, ok)
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	path := writeFile(t, `
app:
  dataDir: /srv/errmgr
manager:
  queueSize: 50
  ignoreCodes: [UI_RENDER_FAILED]
errorLog:
  level: high
  format: text
thresholds:
  - category: system
    severity: critical
    count: 3
    window: 1m
    action: shutdown_application
recovery:
  disableFallback: true
  database:
    server: db.local
`)
	t.Setenv("EM_QUEUE_SIZE", "70")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 70, cfg.Manager.QueueSize, "окружение важнее файла")
	assert.Equal(t, "/srv/errmgr", cfg.App.DataDir)
	assert.Equal(t, time.Second, cfg.Manager.RetryDelay, "значение по умолчанию")

	el, err := cfg.ErrorLogConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv/errmgr/logs", el.Dir)
	assert.Equal(t, apperrors.SeverityHigh, el.Level)
	assert.Equal(t, "text", el.Format)

	mc, err := cfg.ManagerConfig()
	require.NoError(t, err)
	require.Len(t, mc.Thresholds, 1)
	assert.Equal(t, errormanager.Threshold{
		Category: apperrors.CategorySystem,
		Severity: apperrors.SeverityCritical,
		Count:    3,
		Window:   time.Minute,
		Action:   errormanager.ThresholdShutdown,
	}, mc.Thresholds[0])

	f, err := cfg.Filter()
	require.NoError(t, err)
	assert.Equal(t, []apperrors.Code{"UI_RENDER_FAILED"}, f.IgnoreCodes)

	assert.False(t, cfg.RecoveryDefaults().FallbackEnabled)
	opts, ok := cfg.ProbeOptions()
	require.True(t, ok)
	assert.Equal(t, "db.local", opts.Server)
	assert.Equal(t, 1433, opts.Port)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "app:\n  command: cleanup\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "cleanup", cfg.App.Command)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BrokenYAML(t *testing.T) {
	_, err := Load(writeFile(t, "app: [unterminated"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown command", "app:\n  command: serve\n"},
		{"unknown output", "app:\n  outputFormat: xml\n"},
		{"bad severity", "errorLog:\n  level: fatal\n"},
		{"bad threshold action", "thresholds:\n  - severity: high\n    count: 1\n    window: 1s\n    action: explode\n"},
		{"zero threshold count", "thresholds:\n  - severity: high\n    window: 1s\n    action: notify\n"},
		{"bad category", "thresholds:\n  - category: weather\n    severity: high\n    count: 1\n    window: 1s\n    action: notify\n"},
		{"bad filter level", "manager:\n  reportLevel: urgent\n"},
		{"metrics without url", "metrics:\n  enabled: true\n"},
		{"tracing without endpoint", "tracing:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestAnalyticsConfig_MemoryThresholdInBytes(t *testing.T) {
	t.Setenv("EM_ANALYTICS_MEMORY_THRESHOLD_MB", "2")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, uint64(2*1024*1024), cfg.AnalyticsConfig().MemoryThreshold)
}

func TestAlertingConfig_Channels(t *testing.T) {
	t.Setenv("EM_ALERTING_WEBHOOK_URLS", "http://a.local/hook,http://b.local/hook")
	t.Setenv("EM_ALERTING_WEBHOOK_ENABLED", "true")
	t.Setenv("EM_ALERTING_ENABLED", "true")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	ac := cfg.AlertingConfig()
	assert.True(t, ac.Enabled)
	assert.Equal(t, []string{"http://a.local/hook", "http://b.local/hook"}, ac.Webhook.URLs)
	assert.Equal(t, 3, ac.Webhook.MaxRetries)
	assert.Equal(t, "INFO", cfg.AlertingRules().MinSeverity)
}
