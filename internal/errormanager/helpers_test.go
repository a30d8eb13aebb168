package errormanager

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kargones/errmgr/internal/errorlog"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
)

type fakeLog struct {
	mu      sync.Mutex
	err     error
	entries []*apperrors.ApplicationError
}

func (f *fakeLog) Log(e *apperrors.ApplicationError) (*errorlog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, e)
	return &errorlog.Entry{}, nil
}

func (f *fakeLog) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.ID)
	}
	return out
}

func (f *fakeLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeReporter struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeReporter) Report(_ context.Context, err error) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	id := "report-" + apperrors.FromError(err).ID
	f.ids = append(f.ids, id)
	return id, nil
}

func (f *fakeReporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

type fakeAnalytics struct {
	mu        sync.Mutex
	errors    []string
	recovered []string
	panicOn   bool
}

func (f *fakeAnalytics) RecordError(e *apperrors.ApplicationError) {
	if f.panicOn {
		panic("analytics unavailable")
	}
	f.mu.Lock()
	f.errors = append(f.errors, e.ID)
	f.mu.Unlock()
}

func (f *fakeAnalytics) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

func (f *fakeAnalytics) RecordRecovery(id string) {
	f.mu.Lock()
	f.recovered = append(f.recovered, id)
	f.mu.Unlock()
}

type fixture struct {
	mgr       *Manager
	log       *fakeLog
	reporter  *fakeReporter
	analytics *fakeAnalytics
	events    *eventbus.Recorder
}

func newFixture(t *testing.T, cfg Config, rec Recoverer) *fixture {
	t.Helper()
	f := &fixture{
		log:       &fakeLog{},
		reporter:  &fakeReporter{},
		analytics: &fakeAnalytics{},
		events:    &eventbus.Recorder{},
	}
	mgr, err := New(cfg, rec, f.log, f.reporter, f.analytics, f.events, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	f.mgr = mgr
	return f
}

var errBoom = errors.New("boom")
