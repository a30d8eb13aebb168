package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kargones/errmgr/internal/constants"
)

func newTestWebhookAlerter(t *testing.T, urls []string, retries int) (*WebhookAlerter, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	alerter, err := NewWebhookAlerter(WebhookConfig{
		Enabled:    true,
		URLs:       urls,
		Headers:    map[string]string{"Authorization": "Bearer t0ken"},
		MaxRetries: retries,
	}, nil, logger)
	if err != nil {
		t.Fatalf("NewWebhookAlerter() error = %v", err)
	}
	alerter.backoff = time.Millisecond
	return alerter, logger
}

func TestWebhookAlerter_Send(t *testing.T) {
	var got WebhookPayload
	var auth, agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		agent = r.Header.Get("User-Agent")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	alerter, logger := newTestWebhookAlerter(t, []string{server.URL}, 0)
	err := alerter.Send(context.Background(), Alert{
		Rule:      "error-burst",
		ErrorCode: "NETWORK_TIMEOUT",
		Message:   "Всплеск ошибок",
		Component: "analytics",
		Severity:  SeverityWarning,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("Send() = %v", err)
	}

	if got.Rule != "error-burst" || got.ErrorCode != "NETWORK_TIMEOUT" || got.Severity != "WARNING" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if got.Source != "errmgr" {
		t.Errorf("source = %q, want errmgr", got.Source)
	}
	if auth != "Bearer t0ken" {
		t.Errorf("Authorization = %q", auth)
	}
	if agent != constants.UserAgent() {
		t.Errorf("User-Agent = %q", agent)
	}
	if len(logger.infoMsgs) != 1 {
		t.Errorf("info logs = %v, want 1", logger.infoMsgs)
	}
}

func TestWebhookAlerter_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	alerter, logger := newTestWebhookAlerter(t, []string{server.URL}, 3)
	_ = alerter.Send(context.Background(), Alert{Rule: "r"})

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(logger.errors()) != 0 {
		t.Errorf("errors logged = %v", logger.errors())
	}
}

func TestWebhookAlerter_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	alerter, logger := newTestWebhookAlerter(t, []string{server.URL}, 3)
	if err := alerter.Send(context.Background(), Alert{Rule: "r"}); err != nil {
		t.Errorf("Send() = %v, want nil", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if len(logger.errors()) != 1 {
		t.Errorf("errors logged = %v, want 1", logger.errors())
	}
	if len(logger.warnMsgs) != 1 {
		t.Errorf("warnings = %v, want 1 (no URL delivered)", logger.warnMsgs)
	}
}

func TestWebhookAlerter_ContinuesWithOtherURLs(t *testing.T) {
	var okCalls atomic.Int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		okCalls.Add(1)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	alerter, _ := newTestWebhookAlerter(t, []string{bad.URL, good.URL}, 0)
	_ = alerter.Send(context.Background(), Alert{Rule: "r"})
	if okCalls.Load() != 1 {
		t.Errorf("good URL calls = %d, want 1", okCalls.Load())
	}
}
