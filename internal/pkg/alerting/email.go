package alerting

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/logging"
)

const emailBodyTemplate = `Сработало правило алертинга {{.Rule}}

Severity:   {{.Severity}}
Компонент:  {{.Component}}
Частый код: {{.ErrorCode}}
Время:      {{.Timestamp}}
Trace ID:   {{.TraceID}}

{{.Message}}
`

// SMTP порты.
const (
	SMTPPortPlain       = 25
	SMTPPortImplicitTLS = 465
	SMTPPortStartTLS    = 587
)

// SMTPDialer создаёт SMTP соединения (подменяется в тестах).
type SMTPDialer interface {
	DialContext(ctx context.Context, addr string) (SMTPClient, error)
}

// SMTPClient — подмножество методов *smtp.Client.
type SMTPClient interface {
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (WriteCloser, error)
	Close() error
	Extension(ext string) (bool, string)
}

// WriteCloser — тело письма.
type WriteCloser interface {
	Write(p []byte) (n int, err error)
	Close() error
}

type emailTemplateData struct {
	Rule      string
	ErrorCode string
	Severity  string
	Component string
	Message   string
	TraceID   string
	Timestamp string
}

// EmailAlerter отправляет алерты через SMTP.
type EmailAlerter struct {
	config      EmailConfig
	rateLimiter *RateLimiter
	logger      logging.Logger
	dialer      SMTPDialer
	subjectTmpl *template.Template
	bodyTmpl    *template.Template
}

// NewEmailAlerter создаёт EmailAlerter. rateLimiter может быть nil.
func NewEmailAlerter(config EmailConfig, rateLimiter *RateLimiter, logger logging.Logger) (*EmailAlerter, error) {
	if config.SMTPPort == 0 {
		config.SMTPPort = DefaultSMTPPort
	}
	subject := config.SubjectTemplate
	if subject == "" {
		subject = DefaultSubjectTemplate
	}
	subjectTmpl, err := template.New("subject").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("alerting: invalid subject template: %w", err)
	}
	bodyTmpl := template.Must(template.New("body").Parse(emailBodyTemplate))

	return &EmailAlerter{
		config:      config,
		rateLimiter: rateLimiter,
		logger:      logger,
		dialer: &defaultDialer{
			timeout:    config.Timeout,
			useTLS:     config.UseTLS,
			smtpPort:   config.SMTPPort,
			serverName: config.SMTPHost,
		},
		subjectTmpl: subjectTmpl,
		bodyTmpl:    bodyTmpl,
	}, nil
}

// SetDialer устанавливает кастомный SMTPDialer (для тестирования).
func (e *EmailAlerter) SetDialer(dialer SMTPDialer) {
	e.dialer = dialer
}

// Send отправляет алерт письмом. Ошибки логируются, возвращается nil.
func (e *EmailAlerter) Send(ctx context.Context, alert Alert) error {
	if e.rateLimiter != nil && !e.rateLimiter.Allow(alert.key()) {
		e.logger.Debug("алерт подавлен rate limiter", "rule", alert.Rule, "channel", ChannelEmail)
		return nil
	}

	subject, body, err := e.formatEmail(alert)
	if err != nil {
		e.logger.Error("ошибка форматирования email", "error", err.Error(), "rule", alert.Rule)
		return nil
	}
	if err := e.sendEmail(ctx, subject, body); err != nil {
		e.logger.Error("ошибка отправки email алерта",
			"error", err.Error(),
			"rule", alert.Rule,
			"smtp_host", e.config.SMTPHost,
		)
		return nil
	}

	e.logger.Info("email алерт отправлен",
		"rule", alert.Rule,
		"severity", alert.Severity.String(),
		"recipients", len(e.config.To),
	)
	return nil
}

func (e *EmailAlerter) formatEmail(alert Alert) (subject, body string, err error) {
	data := emailTemplateData{
		Rule:      alert.Rule,
		ErrorCode: alert.ErrorCode,
		Severity:  alert.Severity.String(),
		Component: alert.Component,
		Message:   alert.Message,
		TraceID:   alert.TraceID,
		Timestamp: alert.Timestamp.Format(time.RFC3339),
	}
	var sb, bb bytes.Buffer
	if err := e.subjectTmpl.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("failed to format subject: %w", err)
	}
	if err := e.bodyTmpl.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("failed to format body: %w", err)
	}
	return sb.String(), bb.String(), nil
}

func (e *EmailAlerter) sendEmail(ctx context.Context, subject, body string) error {
	addr := net.JoinHostPort(e.config.SMTPHost, fmt.Sprint(e.config.SMTPPort))
	client, err := e.dialer.DialContext(ctx, addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSMTPConnection, err)
	}
	defer client.Close()

	// На 465 TLS уже установлен при подключении.
	if e.config.UseTLS && e.config.SMTPPort != SMTPPortImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: e.config.SMTPHost, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	switch {
	case e.config.SMTPUser != "" && e.config.SMTPPassword != "":
		auth := smtp.PlainAuth("", e.config.SMTPUser, e.config.SMTPPassword, e.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return ErrSMTPAuth
		}
	case e.config.SMTPUser != "" || e.config.SMTPPassword != "":
		e.logger.Warn("указан только SMTP пользователь или только пароль, авторизация пропущена",
			"smtp_host", e.config.SMTPHost)
	}

	if err := client.Mail(e.config.From); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, to := range e.config.To {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("RCPT TO failed for %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write([]byte(e.buildMessage(subject, body))); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSMTPSend, err)
	}
	return nil
}

func (e *EmailAlerter) buildMessage(subject, body string) string {
	var buf strings.Builder
	buf.WriteString("From: " + e.config.From + "\r\n")
	buf.WriteString("To: " + strings.Join(e.config.To, ", ") + "\r\n")
	buf.WriteString("Subject: " + encodeRFC2047(subject) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	buf.WriteString(body)
	return buf.String()
}

// encodeRFC2047 кодирует non-ASCII заголовок как base64 encoded-word.
func encodeRFC2047(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
		}
	}
	return s
}

type defaultDialer struct {
	timeout    time.Duration
	useTLS     bool
	smtpPort   int
	serverName string
}

func (d *defaultDialer) DialContext(ctx context.Context, addr string) (SMTPClient, error) {
	timeout := d.timeout
	if timeout == 0 {
		timeout = DefaultSMTPTimeout
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP address %q: %w", addr, err)
	}
	if d.serverName != "" {
		host = d.serverName
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if d.useTLS && d.smtpPort == SMTPPortImplicitTLS {
		conn = tls.Client(conn, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &smtpClientWrapper{client}, nil
}

type smtpClientWrapper struct {
	*smtp.Client
}

func (w *smtpClientWrapper) Data() (WriteCloser, error) {
	return w.Client.Data()
}
