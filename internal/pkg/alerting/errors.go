package alerting

import "errors"

// Ошибки валидации конфигурации.
var (
	ErrSMTPHostRequired    = errors.New("alerting: smtp host is required when email channel is enabled")
	ErrFromRequired        = errors.New("alerting: from address is required when email channel is enabled")
	ErrToRequired          = errors.New("alerting: at least one recipient is required when email channel is enabled")
	ErrEmailAddressInvalid = errors.New("alerting: email address contains control characters")

	ErrWebhookURLRequired   = errors.New("alerting: at least one url is required when webhook channel is enabled")
	ErrWebhookURLInvalid    = errors.New("alerting: webhook url must be absolute http(s)")
	ErrWebhookHeaderInvalid = errors.New("alerting: webhook header contains control characters")
)

// Ошибки отправки.
var (
	ErrSMTPConnection = errors.New("alerting: failed to connect to SMTP server")
	// ErrSMTPAuth не оборачивает исходную ошибку: она может содержать credentials.
	ErrSMTPAuth = errors.New("alerting: SMTP authentication failed")
	ErrSMTPSend = errors.New("alerting: failed to send email")
)
