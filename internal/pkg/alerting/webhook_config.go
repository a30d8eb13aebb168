package alerting

import (
	"net/url"
	"time"
)

// Значения по умолчанию для webhook канала.
const (
	DefaultWebhookTimeout = 10 * time.Second
	DefaultMaxRetries     = 3
)

// WebhookConfig содержит настройки webhook канала.
type WebhookConfig struct {
	Enabled bool

	URLs []string

	// Headers — дополнительные HTTP заголовки (например, Authorization).
	Headers map[string]string

	Timeout time.Duration

	// MaxRetries — число повторов после первой попытки.
	MaxRetries int
}

// Validate проверяет корректность WebhookConfig.
func (w *WebhookConfig) Validate() error {
	if !w.Enabled {
		return nil
	}
	if len(w.URLs) == 0 {
		return ErrWebhookURLRequired
	}
	for _, rawURL := range w.URLs {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return ErrWebhookURLInvalid
		}
	}
	for key, value := range w.Headers {
		if containsInvalidHTTPHeaderChars(key) || containsInvalidHTTPHeaderChars(value) {
			return ErrWebhookHeaderInvalid
		}
	}
	return nil
}

// containsInvalidHTTPHeaderChars: по RFC 7230 в заголовке допустим HTAB,
// остальные управляющие символы запрещены.
func containsInvalidHTTPHeaderChars(s string) bool {
	for _, r := range s {
		if r == '\t' {
			continue
		}
		if r <= 0x1f || r == 0x7f {
			return true
		}
	}
	return false
}

// containsInvalidEmailHeaderChars: в адресах запрещены все управляющие символы, включая HTAB.
func containsInvalidEmailHeaderChars(s string) bool {
	for _, r := range s {
		if r <= 0x1f || r == 0x7f {
			return true
		}
	}
	return false
}
