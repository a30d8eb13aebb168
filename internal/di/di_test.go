package di

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errmgr/internal/config"
	"github.com/Kargones/errmgr/internal/errormanager"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
	"github.com/Kargones/errmgr/internal/pkg/metrics"
	"github.com/Kargones/errmgr/internal/pkg/output"
	"github.com/Kargones/errmgr/internal/pkg/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	testutil.IsolateEnv(t)
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	return cfg
}

func TestInitializeApp_FullPipeline(t *testing.T) {
	cfg := testConfig(t)

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.Same(t, cfg, app.Config)
	assert.Len(t, app.TraceID, 32)
	assert.Nil(t, app.DBProbe, "база данных не настроена")
	assert.IsType(t, &metrics.NopCollector{}, app.Metrics)
	assert.NotEmpty(t, app.Recovery.Strategies(), "стандартные стратегии зарегистрированы")

	sub := app.Bus.Subscribe(eventbus.ErrorHandled)
	defer sub.Close()

	res := app.Manager.HandleError(context.Background(),
		apperrors.New(apperrors.CodeFileNotFound, "config.ini не найден"))
	assert.True(t, res.Handled)
	assert.True(t, res.Logged)
	assert.Equal(t, errormanager.ActionContinue, res.NextAction)

	evt := <-sub.C
	assert.Equal(t, eventbus.ErrorHandled, evt.Type)

	cleanup()

	data, err := os.ReadFile(filepath.Join(cfg.App.DataDir, "logs", "errors.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "config.ini не найден")
}

func TestInitializeApp_RecoveryDefaultsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recovery.DisableDefaults = true

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Empty(t, app.Recovery.Strategies())
}

func TestInitializeApp_ErrorLogDirIsFile(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	cfg.ErrorLog.Dir = blocker

	app, cleanup, err := InitializeApp(cfg)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Nil(t, cleanup)
}

func TestProvideDBProbe(t *testing.T) {
	cfg := testConfig(t)
	logger := ProvideLogger(cfg)

	probe, cleanup := ProvideDBProbe(cfg, logger)
	assert.Nil(t, probe)
	cleanup()

	cfg.Recovery.Database.Server = "db.local"
	probe, cleanup = ProvideDBProbe(cfg, logger)
	require.NotNil(t, probe, "соединение открывается лениво")
	cleanup()
}

func TestProvideMetricsCollector_FallsBackToNop(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.PushgatewayURL = ""

	collector := ProvideMetricsCollector(cfg, ProvideLogger(cfg))
	assert.IsType(t, &metrics.NopCollector{}, collector)
}

func TestProvideOutputWriter(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.OutputFormat = output.FormatJSON

	var buf bytes.Buffer
	w := ProvideOutputWriter(cfg)
	require.NoError(t, w.Write(&buf, &output.Result{Status: output.StatusSuccess, Command: "version"}))
	assert.Contains(t, buf.String(), `"command": "version"`)
}
