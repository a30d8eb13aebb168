package crash

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
	"github.com/Kargones/errmgr/internal/pkg/sysinfo"
)

func newTestReporter(t *testing.T, cfg Config) (*Reporter, *eventbus.Recorder) {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	rec := &eventbus.Recorder{}
	sampler := sysinfo.NewSampler(cfg.Dir)
	sampler.CPUSampleWindow = time.Millisecond
	r, err := NewReporter(cfg, nil, nil, rec, sampler)
	require.NoError(t, err)
	return r, rec
}

func TestNewReporter_RequiresDir(t *testing.T) {
	_, err := NewReporter(Config{}, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrDirRequired)
}

func TestTrackAction_RingKeepsNewest(t *testing.T) {
	r, _ := newTestReporter(t, Config{MaxUserActions: 3})
	for _, target := range []string{"a", "b", "c", "d", "e"} {
		r.TrackAction(apperrors.UserAction{Type: ActionClick, Target: target})
	}

	var targets []string
	for _, a := range r.RecentActions(0) {
		targets = append(targets, a.Target)
		assert.False(t, a.Timestamp.IsZero())
	}
	assert.Equal(t, []string{"c", "d", "e"}, targets)
	assert.Len(t, r.RecentActions(2), 2)
	assert.Equal(t, "e", r.RecentActions(1)[0].Target)
}

func TestReport_PersistsAndPublishes(t *testing.T) {
	r, rec := newTestReporter(t, Config{AppVersion: "1.2.3"})
	r.TrackAction(apperrors.UserAction{Type: ActionNavigation, Target: "/cases/42"})

	id, err := r.Report(context.Background(), errors.New("disk exploded"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(r.cfg.Dir, id+".json"))
	require.NoError(t, err)

	report, err := r.LoadReport(id)
	require.NoError(t, err)
	assert.Equal(t, id, report.ID)
	assert.Equal(t, SourceReport, report.Source)
	assert.Equal(t, "1.2.3", report.Process.AppVersion)
	assert.Equal(t, os.Getpid(), report.Process.PID)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, report.Process.Platform)
	assert.NotEmpty(t, report.Dump)
	require.NotNil(t, report.Error)
	assert.Equal(t, "disk exploded", report.Error.Message)
	require.Len(t, report.UserActions, 1)
	assert.Equal(t, "/cases/42", report.UserActions[0].Target)
	assert.Positive(t, report.System.Goroutines)

	events := rec.OfType(eventbus.CrashDetected)
	require.Len(t, events, 1)
	summary, ok := events[0].Payload.(Summary)
	require.True(t, ok)
	assert.Equal(t, id, summary.ID)
}

func TestReport_NilErrorUsesProcessCrashed(t *testing.T) {
	r, _ := newTestReporter(t, Config{})
	id, err := r.Report(context.Background(), nil)
	require.NoError(t, err)

	report, err := r.LoadReport(id)
	require.NoError(t, err)
	assert.Equal(t, apperrors.CodeSystemProcessCrashed, report.Error.Code)
}

func TestReport_RemoteSummary(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	r, _ := newTestReporter(t, Config{Endpoint: server.URL, Token: "s3cret"})
	for i := 0; i < 15; i++ {
		r.TrackAction(apperrors.UserAction{Type: ActionClick, Target: "btn", Data: map[string]string{"secret": "x"}})
	}

	err := apperrors.New(apperrors.CodeDatabaseQueryFailed, "select failed",
		apperrors.WithUser("user-1", "session-1"),
		apperrors.WithTechnicalDetails("stack of secrets"),
	)
	_, reportErr := r.Report(context.Background(), err)
	require.NoError(t, reportErr)

	assert.Equal(t, "Bearer s3cret", gotAuth)
	require.NotNil(t, gotBody)
	actions, ok := gotBody["userActions"].([]any)
	require.True(t, ok)
	assert.Len(t, actions, RemoteUserActions)
	assert.NotContains(t, gotBody, "dump")

	errObj, ok := gotBody["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "DATABASE_QUERY_FAILED", errObj["code"])
	assert.NotContains(t, errObj, "technicalDetails")
	assert.NotContains(t, errObj, "context")
}

func TestReport_RemoteFailureIsNotAnError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	r, _ := newTestReporter(t, Config{Endpoint: server.URL})
	id, err := r.Report(context.Background(), errors.New("x"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, int32(1), calls.Load(), "remote delivery is not retried")

	_, err = r.LoadReport(id)
	assert.NoError(t, err)
}

func TestLoadReport_InvalidID(t *testing.T) {
	r, _ := newTestReporter(t, Config{})
	_, err := r.LoadReport("../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidReportID)
}

func TestListReports_NewestFirstSkipsGarbage(t *testing.T) {
	r, _ := newTestReporter(t, Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r.SetNowFunc(func() time.Time { return base })
	older, err := r.Report(context.Background(), errors.New("older"))
	require.NoError(t, err)
	r.SetNowFunc(func() time.Time { return base.Add(time.Hour) })
	newer, err := r.Report(context.Background(), errors.New("newer"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(r.cfg.Dir, "notes.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(r.cfg.Dir, "0b0d6c0e-8b7f-4a7c-9d7e-1f2a3b4c5d6e.json"), []byte("{broken"), 0o600))

	list, err := r.ListReports()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer, list[0].ID)
	assert.Equal(t, older, list[1].ID)
}

func TestPurge(t *testing.T) {
	r, _ := newTestReporter(t, Config{})
	oldID, err := r.Report(context.Background(), errors.New("old"))
	require.NoError(t, err)
	freshID, err := r.Report(context.Background(), errors.New("fresh"))
	require.NoError(t, err)

	past := time.Now().Add(-31 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(r.reportPath(oldID), past, past))

	removed, err := r.Purge(time.Now().Add(-DefaultRetention))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = r.LoadReport(oldID)
	assert.Error(t, err)
	_, err = r.LoadReport(freshID)
	assert.NoError(t, err)
}

func TestStart_SweepsImmediately(t *testing.T) {
	r, _ := newTestReporter(t, Config{})
	id, err := r.Report(context.Background(), errors.New("old"))
	require.NoError(t, err)
	past := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(r.reportPath(id), past, past))

	r.Start(context.Background())
	defer r.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(r.reportPath(id))
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecoverPanic_ReportsAndRepanics(t *testing.T) {
	r, rec := newTestReporter(t, Config{})

	assert.PanicsWithValue(t, "kaboom", func() {
		defer r.RecoverPanic(context.Background())
		panic("kaboom")
	})

	events := rec.OfType(eventbus.CrashDetected)
	require.Len(t, events, 1)
	summary := events[0].Payload.(Summary)
	assert.Equal(t, SourcePanic, summary.Source)
	assert.Equal(t, apperrors.CodeSystemProcessCrashed, summary.Code)
}

func TestGo_ReportsAndContinues(t *testing.T) {
	r, rec := newTestReporter(t, Config{})

	r.Go(context.Background(), func(context.Context) {
		panic(errors.New("worker died"))
	})
	require.NoError(t, r.Close())

	events := rec.OfType(eventbus.CrashDetected)
	require.Len(t, events, 1)
	assert.Equal(t, SourceAsync, events[0].Payload.(Summary).Source)
}

func TestWatchProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	t.Run("clean exit produces no report", func(t *testing.T) {
		r, rec := newTestReporter(t, Config{})
		cmd := exec.Command("sh", "-c", "exit 0")
		require.NoError(t, cmd.Start())

		id, err := r.WatchProcess(context.Background(), cmd)
		require.NoError(t, err)
		assert.Empty(t, id)
		assert.Empty(t, rec.Events())
	})

	t.Run("non-zero exit code is reported", func(t *testing.T) {
		r, _ := newTestReporter(t, Config{})
		cmd := exec.Command("sh", "-c", "exit 3")
		require.NoError(t, cmd.Start())

		id, err := r.WatchProcess(context.Background(), cmd)
		require.Error(t, err)
		require.NotEmpty(t, id)

		report, loadErr := r.LoadReport(id)
		require.NoError(t, loadErr)
		require.NotNil(t, report.ExitCode)
		assert.Equal(t, 3, *report.ExitCode)
		assert.Equal(t, SourceProcess, report.Source)
		assert.Empty(t, report.Dump)
	})

	t.Run("signal is reported", func(t *testing.T) {
		r, _ := newTestReporter(t, Config{})
		cmd := exec.Command("sh", "-c", "kill -KILL $$")
		require.NoError(t, cmd.Start())

		id, err := r.WatchProcess(context.Background(), cmd)
		require.Error(t, err)

		report, loadErr := r.LoadReport(id)
		require.NoError(t, loadErr)
		assert.Nil(t, report.ExitCode)
		assert.Equal(t, "killed", report.Signal)
	})
}
