package alerting

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		s    Severity
		want string
	}{
		{SeverityInfo, "INFO"},
		{SeverityWarning, "WARNING"},
		{SeverityCritical, "CRITICAL"},
		{Severity(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestAlert_Wants(t *testing.T) {
	all := Alert{Rule: "r"}
	if !all.wants(ChannelEmail) || !all.wants(ChannelWebhook) {
		t.Error("alert without channels must target every channel")
	}
	only := Alert{Rule: "r", Channels: []string{ChannelWebhook}}
	if only.wants(ChannelEmail) {
		t.Error("webhook-only alert must not target email")
	}
	if !only.wants(ChannelWebhook) {
		t.Error("webhook-only alert must target webhook")
	}
}

func TestNopAlerter(t *testing.T) {
	if err := NewNopAlerter().Send(context.Background(), Alert{}); err != nil {
		t.Errorf("NopAlerter.Send() = %v, want nil", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{"disabled", Config{Email: EmailConfig{Enabled: true}}, nil},
		{"email without host", Config{Enabled: true, Email: EmailConfig{Enabled: true}}, ErrSMTPHostRequired},
		{"email without from", Config{Enabled: true, Email: EmailConfig{Enabled: true, SMTPHost: "smtp"}}, ErrFromRequired},
		{"email without to", Config{Enabled: true, Email: EmailConfig{Enabled: true, SMTPHost: "smtp", From: "a@b"}}, ErrToRequired},
		{"email crlf", Config{Enabled: true, Email: EmailConfig{Enabled: true, SMTPHost: "smtp", From: "a@b\r\nBcc: x", To: []string{"c@d"}}}, ErrEmailAddressInvalid},
		{"webhook without url", Config{Enabled: true, Webhook: WebhookConfig{Enabled: true}}, ErrWebhookURLRequired},
		{"webhook file scheme", Config{Enabled: true, Webhook: WebhookConfig{Enabled: true, URLs: []string{"file:///etc/passwd"}}}, ErrWebhookURLInvalid},
		{"webhook header injection", Config{Enabled: true, Webhook: WebhookConfig{Enabled: true, URLs: []string{"https://hooks.example.com"}, Headers: map[string]string{"X": "a\nb"}}}, ErrWebhookHeaderInvalid},
		{"webhook ok", Config{Enabled: true, Webhook: WebhookConfig{Enabled: true, URLs: []string{"https://hooks.example.com"}, Headers: map[string]string{"X": "a\tb"}}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewAlerter(t *testing.T) {
	logger := &testLogger{}

	a, err := NewAlerter(Config{Enabled: false}, RulesConfig{}, logger)
	if err != nil {
		t.Fatalf("NewAlerter(disabled) error = %v", err)
	}
	if _, ok := a.(*NopAlerter); !ok {
		t.Errorf("NewAlerter(disabled) = %T, want *NopAlerter", a)
	}

	a, err = NewAlerter(Config{Enabled: true}, RulesConfig{}, logger)
	if err != nil {
		t.Fatalf("NewAlerter(no channels) error = %v", err)
	}
	if _, ok := a.(*NopAlerter); !ok {
		t.Errorf("NewAlerter(no channels) = %T, want *NopAlerter", a)
	}

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Webhook.Enabled = true
	cfg.Webhook.URLs = []string{"https://hooks.example.com/x"}
	a, err = NewAlerter(cfg, RulesConfig{MinSeverity: "WARNING"}, logger)
	if err != nil {
		t.Fatalf("NewAlerter(webhook) error = %v", err)
	}
	if _, ok := a.(*MultiChannelAlerter); !ok {
		t.Errorf("NewAlerter(webhook) = %T, want *MultiChannelAlerter", a)
	}

	cfg.Webhook.URLs = nil
	if _, err := NewAlerter(cfg, RulesConfig{}, logger); !errors.Is(err, ErrWebhookURLRequired) {
		t.Errorf("NewAlerter(invalid) error = %v, want ErrWebhookURLRequired", err)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(5 * time.Minute)
	limiter.SetNowFunc(func() time.Time { return now })

	if !limiter.Allow("a") {
		t.Fatal("first Allow(a) = false")
	}
	if limiter.Allow("a") {
		t.Error("second Allow(a) inside window = true")
	}
	if !limiter.Allow("b") {
		t.Error("Allow(b) must be independent of a")
	}

	now = now.Add(5 * time.Minute)
	if !limiter.Allow("a") {
		t.Error("Allow(a) after window = false")
	}

	limiter.Reset("a")
	if !limiter.Allow("a") {
		t.Error("Allow(a) after Reset = false")
	}
}

func TestRulesEngine_Evaluate(t *testing.T) {
	engine := NewRulesEngine(RulesConfig{
		MinSeverity:       "WARNING",
		ExcludeRules:      []string{"noisy"},
		ExcludeErrorCodes: []string{"UI_RENDER_FAILED"},
		Channels: map[string]ChannelRulesConfig{
			ChannelEmail: {MinSeverity: "CRITICAL", IncludeRules: []string{"critical-errors"}},
		},
	})

	tests := []struct {
		name    string
		alert   Alert
		channel string
		want    bool
	}{
		{"below global severity", Alert{Rule: "x", Severity: SeverityInfo}, ChannelWebhook, false},
		{"passes global", Alert{Rule: "x", Severity: SeverityWarning}, ChannelWebhook, true},
		{"excluded rule", Alert{Rule: "noisy", Severity: SeverityCritical}, ChannelWebhook, false},
		{"excluded code", Alert{Rule: "x", ErrorCode: "UI_RENDER_FAILED", Severity: SeverityCritical}, ChannelWebhook, false},
		{"email override severity", Alert{Rule: "critical-errors", Severity: SeverityWarning}, ChannelEmail, false},
		{"email override include", Alert{Rule: "error-burst", Severity: SeverityCritical}, ChannelEmail, false},
		{"email override match", Alert{Rule: "critical-errors", Severity: SeverityCritical}, ChannelEmail, true},
		{"override replaces global exclusions", Alert{Rule: "critical-errors", ErrorCode: "UI_RENDER_FAILED", Severity: SeverityCritical}, ChannelEmail, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.Evaluate(tt.alert, tt.channel); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}
