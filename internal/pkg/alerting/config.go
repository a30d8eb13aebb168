package alerting

import "time"

// Значения по умолчанию для конфигурации alerting.
const (
	// DefaultRateLimitWindow — интервал между алертами одного правила по умолчанию.
	DefaultRateLimitWindow = 5 * time.Minute

	// DefaultSMTPPort — порт SMTP по умолчанию (StartTLS).
	DefaultSMTPPort = 587

	// DefaultSMTPTimeout — таймаут SMTP операций по умолчанию.
	DefaultSMTPTimeout = 30 * time.Second

	// DefaultSubjectTemplate — шаблон темы письма по умолчанию.
	DefaultSubjectTemplate = "[errmgr] {{.Severity}} {{.Rule}}: {{.ErrorCode}}"
)

// Config содержит настройки каналов. Используется NewAlerter.
type Config struct {
	// Enabled — включён ли алертинг.
	Enabled bool

	// RateLimitWindow — минимальный интервал между алертами одного правила.
	RateLimitWindow time.Duration

	Email   EmailConfig
	Webhook WebhookConfig
}

// EmailConfig содержит настройки email канала.
type EmailConfig struct {
	Enabled bool

	SMTPHost string

	// SMTPPort — 25, 465 (implicit TLS) или 587 (StartTLS).
	SMTPPort int

	SMTPUser     string
	SMTPPassword string

	// UseTLS — StartTLS для 587, implicit для 465.
	UseTLS bool

	From string
	To   []string

	// SubjectTemplate — text/template темы письма.
	// Поля: {{.Rule}}, {{.ErrorCode}}, {{.Severity}}, {{.Component}}.
	SubjectTemplate string

	Timeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию. Алертинг выключен.
func DefaultConfig() Config {
	return Config{
		RateLimitWindow: DefaultRateLimitWindow,
		Email: EmailConfig{
			SMTPPort:        DefaultSMTPPort,
			UseTLS:          true,
			SubjectTemplate: DefaultSubjectTemplate,
			Timeout:         DefaultSMTPTimeout,
		},
		Webhook: WebhookConfig{
			Timeout:    DefaultWebhookTimeout,
			MaxRetries: DefaultMaxRetries,
		},
	}
}

// Validate проверяет включённые каналы.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.Email.Validate(); err != nil {
		return err
	}
	return c.Webhook.Validate()
}

// Validate проверяет корректность EmailConfig.
func (e *EmailConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	if e.SMTPHost == "" {
		return ErrSMTPHostRequired
	}
	if e.From == "" {
		return ErrFromRequired
	}
	// Управляющие символы в адресах позволяют внедрить SMTP заголовки.
	if containsInvalidEmailHeaderChars(e.From) {
		return ErrEmailAddressInvalid
	}
	if len(e.To) == 0 {
		return ErrToRequired
	}
	for _, to := range e.To {
		if containsInvalidEmailHeaderChars(to) {
			return ErrEmailAddressInvalid
		}
	}
	return nil
}
