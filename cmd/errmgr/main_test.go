package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errmgr/internal/config"
	"github.com/Kargones/errmgr/internal/constants"
	"github.com/Kargones/errmgr/internal/di"
	"github.com/Kargones/errmgr/internal/errorlog"
	"github.com/Kargones/errmgr/internal/errormanager"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
	"github.com/Kargones/errmgr/internal/pkg/output"
	"github.com/Kargones/errmgr/internal/pkg/testutil"
)

func TestParseLine(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		p, err := parseLine([]byte("  disk is full \n"))
		require.NoError(t, err)
		require.Error(t, p.err)
		assert.Equal(t, "disk is full", p.err.Error())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := parseLine([]byte("   "))
		assert.ErrorIs(t, err, errEmptyLine)
	})

	t.Run("application error", func(t *testing.T) {
		p, err := parseLine([]byte(`{"code":"NETWORK_CONNECTION_LOST","message":"link down","severity":"high","component":"sync","userId":"u1"}`))
		require.NoError(t, err)
		var appErr *apperrors.ApplicationError
		require.ErrorAs(t, p.err, &appErr)
		assert.Equal(t, apperrors.CodeNetworkConnectionLost, appErr.Code)
		assert.Equal(t, apperrors.SeverityHigh, appErr.Severity)
		assert.Equal(t, apperrors.CategoryNetwork, appErr.Category)
		assert.Equal(t, "sync", appErr.Context.Component)
		assert.Equal(t, "u1", appErr.Context.UserID)
	})

	t.Run("missing code", func(t *testing.T) {
		p, err := parseLine([]byte(`{"message":"???"}`))
		require.NoError(t, err)
		var appErr *apperrors.ApplicationError
		require.ErrorAs(t, p.err, &appErr)
		assert.Equal(t, apperrors.CodeUnknown, appErr.Code)
	})

	t.Run("user action", func(t *testing.T) {
		p, err := parseLine([]byte(`{"kind":"action","action":"click","target":"save"}`))
		require.NoError(t, err)
		require.NotNil(t, p.action)
		assert.Equal(t, "click", p.action.Type)
		assert.Equal(t, "save", p.action.Target)
	})

	for _, bad := range []string{
		`{"code":`,
		`{"kind":"metric"}`,
		`{"kind":"action"}`,
		`{"code":"X","severity":"fatal"}`,
		`{"code":"X","category":"weather"}`,
	} {
		_, err := parseLine([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestQueryFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f, err := queryFilter(config.AppConfig{
		QuerySince:    time.Hour,
		QueryLimit:    10,
		QuerySeverity: "high",
		QueryCategory: "network",
		QueryCode:     "NETWORK_TIMEOUT",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, now.Add(-time.Hour), f.From)
	assert.Equal(t, now, f.To)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, []apperrors.Severity{apperrors.SeverityHigh, apperrors.SeverityCritical}, f.Severities)
	assert.Equal(t, []apperrors.Category{apperrors.CategoryNetwork}, f.Categories)
	assert.Equal(t, []apperrors.Code{apperrors.CodeNetworkTimeout}, f.Codes)

	_, err = queryFilter(config.AppConfig{QueryCategory: "weather"}, now)
	assert.Error(t, err)
	_, err = queryFilter(config.AppConfig{QuerySeverity: "fatal"}, now)
	assert.Error(t, err)
}

func newTestApp(t *testing.T) *di.App {
	t.Helper()
	testutil.IsolateEnv(t)
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	cfg.Thresholds = []config.ThresholdConfig{
		{Category: "system", Severity: "critical", Count: 2, Window: time.Minute, Action: "shutdown_application"},
	}

	app, cleanup, err := di.InitializeApp(cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return app
}

func TestRunService_EOF(t *testing.T) {
	app := newTestApp(t)
	in := strings.NewReader(strings.Join([]string{
		`{"kind":"action","action":"open","target":"report.xlsx"}`,
		`{"code":"FILE_NOT_FOUND","message":"report.xlsx"}`,
		`not json at all`,
		`{"code":`,
		``,
	}, "\n"))

	data, summary, err := runService(context.Background(), app, in)
	require.NoError(t, err)
	report := data.(*serviceReport)

	assert.Equal(t, "eof", report.Stopped)
	assert.Equal(t, 2, report.Received)
	assert.Equal(t, 1, report.Actions)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, int64(2), report.Stats.Processed)
	assert.Len(t, app.Crash.RecentActions(0), 1)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.WarningsCount)
}

func TestRunService_ShutdownThreshold(t *testing.T) {
	app := newTestApp(t)
	oom := `{"code":"SYSTEM_OUT_OF_MEMORY","message":"heap exhausted"}`
	in := strings.NewReader(strings.Repeat(oom+"\n", 5))

	data, _, err := runService(context.Background(), app, in)
	require.ErrorIs(t, err, errShutdownRequested)
	report := data.(*serviceReport)

	assert.Contains(t, report.Stopped, "shutdown")
	assert.Equal(t, 2, report.Received, "остановка на втором срабатывании порога")
	assert.Equal(t, 1, report.NextAction[errormanager.ActionShutdown])
	// события последней записи доходят до отчёта после остановки
	assert.Equal(t, 1, report.Requests[eventbus.ShutdownRequired])
	assert.Equal(t, 1, report.Requests[eventbus.ThresholdExceeded])
}

func TestExecute(t *testing.T) {
	app := newTestApp(t)
	started := time.Now()

	res, code := execute(context.Background(), app, constants.CmdVersion, started)
	assert.Equal(t, constants.ExitOK, code)
	assert.Equal(t, output.StatusSuccess, res.Status)
	assert.Equal(t, constants.Version, res.Data.(versionData).Version)

	res, code = execute(context.Background(), app, "serve", started)
	assert.Equal(t, constants.ExitFailure, code)
	assert.Equal(t, output.StatusError, res.Status)

	res, code = execute(context.Background(), app, constants.CmdCleanup, started)
	assert.Equal(t, constants.ExitOK, code)
	assert.Equal(t, 0, res.Data.(cleanupResult).CrashReports)
}

func TestQueryLog_ReadsFlushedEntries(t *testing.T) {
	app := newTestApp(t)
	app.Manager.HandleError(context.Background(), apperrors.New(apperrors.CodeFileNotFound, "report.xlsx"))
	app.Manager.HandleError(context.Background(), errors.New("unrelated"))
	require.NoError(t, app.ErrorLog.Flush())

	app.Config.App.QueryCode = string(apperrors.CodeFileNotFound)
	data, summary, err := queryLog(context.Background(), app)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "total", summary.KeyMetrics[0].Name)
	assert.Equal(t, "1", summary.KeyMetrics[0].Value)
	res := data.(errorlog.QueryResult)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "report.xlsx", res.Entries[0].Error.Message)
}

func TestRun_VersionJSON(t *testing.T) {
	testutil.IsolateEnv(t)
	t.Setenv("EM_COMMAND", constants.CmdVersion)
	t.Setenv("EM_OUTPUT_FORMAT", output.FormatJSON)

	var code int
	out := testutil.CaptureStdout(t, func() { code = run() })
	assert.Equal(t, constants.ExitOK, code)

	var res struct {
		Status  string      `json:"status"`
		Command string      `json:"command"`
		Data    versionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, output.StatusSuccess, res.Status)
	assert.Equal(t, constants.CmdVersion, res.Command)
	assert.Equal(t, constants.Version, res.Data.Version)
}

func TestRun_ConfigError(t *testing.T) {
	testutil.IsolateEnv(t)
	t.Setenv("EM_COMMAND", "serve")

	assert.Equal(t, constants.ExitConfig, run())
}

func TestRun_ServiceShutdownExitCode(t *testing.T) {
	dir := testutil.IsolateEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
thresholds:
  - category: system
    severity: critical
    count: 1
    window: 1m
    action: shutdown
`), 0o600))
	t.Setenv("EM_COMMAND", constants.CmdRun)

	var code int
	testutil.WithStdin(t, `{"code":"SYSTEM_OUT_OF_MEMORY","message":"heap"}`+"\n", func() {
		out := testutil.CaptureStdout(t, func() { code = run() })
		assert.Contains(t, out, "SHUTDOWN_REQUESTED")
	})
	assert.Equal(t, constants.ExitShutdown, code)
}
