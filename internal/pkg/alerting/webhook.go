package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Kargones/errmgr/internal/constants"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/urlutil"
)

// maxResponseBodySize — сколько байт тела ответа читается для диагностики.
const maxResponseBodySize = 1024

// maxBackoff ограничивает экспоненциальную паузу между повторами.
const maxBackoff = 4 * time.Second

// HTTPClient — интерфейс для HTTP запросов (для тестирования).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookPayload — JSON тело webhook запроса.
type WebhookPayload struct {
	Rule      string    `json:"rule"`
	ErrorCode string    `json:"error_code,omitempty"`
	Message   string    `json:"message"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component,omitempty"`
	Severity  string    `json:"severity"`
	Source    string    `json:"source"`
	Hostname  string    `json:"hostname,omitempty"`
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// WebhookAlerter отправляет алерты HTTP POST запросом на каждый URL.
type WebhookAlerter struct {
	config      WebhookConfig
	rateLimiter *RateLimiter
	logger      logging.Logger
	httpClient  HTTPClient
	hostname    string
	backoff     time.Duration
}

// NewWebhookAlerter создаёт WebhookAlerter. rateLimiter может быть nil.
func NewWebhookAlerter(config WebhookConfig, rateLimiter *RateLimiter, logger logging.Logger) (*WebhookAlerter, error) {
	if config.Timeout == 0 {
		config.Timeout = DefaultWebhookTimeout
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &WebhookAlerter{
		config:      config,
		rateLimiter: rateLimiter,
		logger:      logger,
		httpClient:  &http.Client{Timeout: config.Timeout},
		hostname:    hostname,
		backoff:     time.Second,
	}, nil
}

// SetHTTPClient устанавливает кастомный HTTPClient (для тестирования).
func (w *WebhookAlerter) SetHTTPClient(client HTTPClient) {
	w.httpClient = client
}

// Send отправляет алерт на все URL. Ошибки логируются, возвращается nil.
func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	if w.rateLimiter != nil && !w.rateLimiter.Allow(alert.key()) {
		w.logger.Debug("алерт подавлен rate limiter", "rule", alert.Rule, "channel", ChannelWebhook)
		return nil
	}

	payload := WebhookPayload{
		Rule:      alert.Rule,
		ErrorCode: alert.ErrorCode,
		Message:   alert.Message,
		TraceID:   alert.TraceID,
		Timestamp: alert.Timestamp,
		Component: alert.Component,
		Severity:  alert.Severity.String(),
		Source:    "errmgr",
		Hostname:  w.hostname,
	}

	delivered := 0
	for _, url := range w.config.URLs {
		if ctx.Err() != nil {
			return nil
		}
		if err := w.sendWithRetry(ctx, url, payload); err != nil {
			w.logger.Error("ошибка отправки webhook алерта",
				"error", err.Error(),
				"url", urlutil.MaskURL(url),
				"rule", alert.Rule,
			)
			continue
		}
		delivered++
	}

	if delivered == 0 && len(w.config.URLs) > 0 {
		w.logger.Warn("webhook алерт не доставлен ни на один URL", "rule", alert.Rule)
		return nil
	}
	w.logger.Info("webhook алерт отправлен",
		"rule", alert.Rule,
		"severity", alert.Severity.String(),
		"urls_success", delivered,
		"urls_total", len(w.config.URLs),
	)
	return nil
}

// sendWithRetry повторяет запрос при сетевых ошибках и 5xx с паузой 1s, 2s, 4s.
// 4xx не повторяется.
func (w *WebhookAlerter) sendWithRetry(ctx context.Context, url string, payload WebhookPayload) error {
	var lastErr error
	backoff := w.backoff
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			w.logger.Debug("webhook retry", "attempt", attempt, "error", lastErr.Error(), "url", urlutil.MaskURL(url))
		}

		lastErr = w.sendRequest(ctx, url, payload)
		if lastErr == nil {
			return nil
		}
		if isClientHTTPError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", w.config.MaxRetries+1, lastErr)
}

func (w *WebhookAlerter) sendRequest(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", constants.UserAgent())
	for key, value := range w.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize)) //nolint:errcheck // best-effort drain
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	return &httpError{StatusCode: resp.StatusCode, Body: string(msg)}
}

func isClientHTTPError(err error) bool {
	var httpErr *httpError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
}
