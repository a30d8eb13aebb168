// Package alerting доставляет алерты Error Analytics во внешние каналы:
// webhook и email. Каналы объединяются MultiChannelAlerter с общим rate
// limiting и правилами фильтрации по каналам.
package alerting

import (
	"context"
	"slices"
	"time"
)

// Severity определяет уровень критичности алерта.
type Severity int

const (
	// SeverityInfo — информационный алерт.
	SeverityInfo Severity = iota
	// SeverityWarning — предупреждающий алерт.
	SeverityWarning
	// SeverityCritical — критический алерт.
	SeverityCritical
)

// Имена каналов алертинга.
const (
	// ChannelEmail — имя email канала.
	ChannelEmail = "email"
	// ChannelWebhook — имя webhook канала.
	ChannelWebhook = "webhook"
)

// String возвращает строковое представление Severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alert — сработавшее правило алертинга.
type Alert struct {
	// Rule — идентификатор сработавшего правила.
	Rule string

	// ErrorCode — самый частый код ошибки на момент срабатывания.
	ErrorCode string

	// Message — человекочитаемое описание.
	Message string

	// TraceID — идентификатор трассировки для корреляции логов.
	TraceID string

	// Timestamp — время срабатывания.
	Timestamp time.Time

	// Component — компонент-источник алерта.
	Component string

	// Severity — уровень критичности алерта.
	Severity Severity

	// Channels — каналы доставки. Пусто — все настроенные каналы.
	Channels []string
}

// key — ключ rate limiting: одно правило с одним кодом не чаще окна.
func (a Alert) key() string {
	return a.Rule + "|" + a.ErrorCode
}

// wants сообщает, адресован ли алерт каналу name.
func (a Alert) wants(name string) bool {
	return len(a.Channels) == 0 || slices.Contains(a.Channels, name)
}

// Alerter отправляет алерты.
//
// Send не возвращает ошибок доставки: они логируются внутри канала, чтобы
// недоступность SMTP или webhook не влияла на pipeline обработки ошибок.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}
