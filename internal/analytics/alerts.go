package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/alerting"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
)

// ActionType — действие, выполняемое при срабатывании правила.
type ActionType string

// Действия правил алертинга.
const (
	ActionLog     ActionType = "log"
	ActionNotify  ActionType = "notify"
	ActionWebhook ActionType = "webhook"
	ActionEmail   ActionType = "email"
)

var (
	// ErrInvalidRule возвращается для правила без ID или условия.
	ErrInvalidRule = errors.New("analytics: некорректное правило алертинга")
	// ErrDuplicateRule возвращается при повторной регистрации ID.
	ErrDuplicateRule = errors.New("analytics: правило с таким ID уже зарегистрировано")
	// ErrRuleNotFound возвращается для неизвестного ID правила.
	ErrRuleNotFound = errors.New("analytics: правило не найдено")
)

// Rule — правило алертинга над агрегированными метриками.
type Rule struct {
	ID          string
	Name        string
	Description string
	Condition   func(*Metrics) bool
	Severity    apperrors.Severity
	Cooldown    time.Duration
	Actions     []ActionType
	Enabled     bool

	LastTriggered time.Time
}

// RuleInfo — описание правила без условия.
type RuleInfo struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Severity      apperrors.Severity `json:"severity"`
	Cooldown      time.Duration      `json:"cooldown"`
	Actions       []ActionType       `json:"actions"`
	Enabled       bool               `json:"enabled"`
	LastTriggered time.Time          `json:"lastTriggered,omitzero"`
}

// AlertEvent — payload событий alert-triggered, alert:webhook и alert:email.
type AlertEvent struct {
	Rule    RuleInfo `json:"rule"`
	Metrics *Metrics `json:"metrics"`
}

func (r *Rule) info() RuleInfo {
	return RuleInfo{
		ID:            r.ID,
		Name:          r.Name,
		Severity:      r.Severity,
		Cooldown:      r.Cooldown,
		Actions:       append([]ActionType(nil), r.Actions...),
		Enabled:       r.Enabled,
		LastTriggered: r.LastTriggered,
	}
}

// DefaultRules возвращает правила по умолчанию: всплеск ошибок, критические
// ошибки за последний час, низкая доля восстановлений.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "error-burst",
			Name:        "Всплеск ошибок",
			Description: "50 и более ошибок за последний час",
			Condition:   func(m *Metrics) bool { return m.LastHour >= 50 },
			Severity:    apperrors.SeverityHigh,
			Cooldown:    5 * time.Minute,
			Actions:     []ActionType{ActionLog, ActionNotify},
			Enabled:     true,
		},
		{
			ID:          "critical-errors",
			Name:        "Критические ошибки",
			Description: "Есть критические ошибки за последний час",
			Condition:   func(m *Metrics) bool { return m.CriticalLastHour > 0 },
			Severity:    apperrors.SeverityCritical,
			Cooldown:    15 * time.Minute,
			Actions:     []ActionType{ActionLog, ActionNotify, ActionWebhook},
			Enabled:     true,
		},
		{
			ID:          "low-recovery-rate",
			Name:        "Низкая доля восстановлений",
			Description: "Восстановлено менее половины из 20 и более ошибок",
			Condition:   func(m *Metrics) bool { return m.Total >= 20 && m.RecoveryRate < 0.5 },
			Severity:    apperrors.SeverityMedium,
			Cooldown:    30 * time.Minute,
			Actions:     []ActionType{ActionLog, ActionEmail},
			Enabled:     true,
		},
	}
}

// AddAlertRule регистрирует правило.
func (a *Analyzer) AddAlertRule(r Rule) error {
	if r.ID == "" || r.Condition == nil {
		return ErrInvalidRule
	}
	for _, act := range r.Actions {
		switch act {
		case ActionLog, ActionNotify, ActionWebhook, ActionEmail:
		default:
			return fmt.Errorf("%w: неизвестное действие %q", ErrInvalidRule, act)
		}
	}
	a.rulesMu.Lock()
	defer a.rulesMu.Unlock()
	for _, existing := range a.rules {
		if existing.ID == r.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID)
		}
	}
	rule := r
	a.rules = append(a.rules, &rule)
	return nil
}

// RemoveAlertRule удаляет правило. Возвращает false, если правила не было.
func (a *Analyzer) RemoveAlertRule(id string) bool {
	a.rulesMu.Lock()
	defer a.rulesMu.Unlock()
	for i, r := range a.rules {
		if r.ID == id {
			a.rules = append(a.rules[:i], a.rules[i+1:]...)
			return true
		}
	}
	return false
}

// SetRuleEnabled включает или выключает правило.
func (a *Analyzer) SetRuleEnabled(id string, enabled bool) error {
	a.rulesMu.Lock()
	defer a.rulesMu.Unlock()
	for _, r := range a.rules {
		if r.ID == id {
			r.Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

// Rules возвращает описания правил, отсортированные по ID.
func (a *Analyzer) Rules() []RuleInfo {
	a.rulesMu.Lock()
	defer a.rulesMu.Unlock()
	out := make([]RuleInfo, 0, len(a.rules))
	for _, r := range a.rules {
		out = append(out, r.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EvaluateAlerts проверяет включённые правила, у которых истёк cooldown,
// и выполняет действия сработавших. Возвращает ID сработавших правил.
func (a *Analyzer) EvaluateAlerts(ctx context.Context) []string {
	m, err := a.GetAnalytics(ctx, nil)
	if err != nil {
		a.log.Warn("не удалось вычислить метрики для алертинга", "error", err.Error())
		return nil
	}
	now := a.clock()

	var fired []*Rule
	a.rulesMu.Lock()
	for _, r := range a.rules {
		if !r.Enabled {
			continue
		}
		if !r.LastTriggered.IsZero() && now.Sub(r.LastTriggered) < r.Cooldown {
			continue
		}
		if !a.check(r, m) {
			continue
		}
		r.LastTriggered = now
		fired = append(fired, r)
	}
	infos := make([]RuleInfo, len(fired))
	for i, r := range fired {
		infos[i] = r.info()
	}
	a.rulesMu.Unlock()

	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		a.fire(ctx, info, m)
		ids = append(ids, info.ID)
	}
	return ids
}

// check вызывает условие правила. Panic в условии считается несработавшим правилом.
func (a *Analyzer) check(r *Rule, m *Metrics) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			a.log.Warn("panic в условии правила алертинга", "rule", r.ID, "panic", fmt.Sprint(v))
			ok = false
		}
	}()
	return r.Condition(m)
}

func (a *Analyzer) fire(ctx context.Context, rule RuleInfo, m *Metrics) {
	a.metrics.RecordAlertFired(rule.ID, rule.Severity.String())
	evt := AlertEvent{Rule: rule, Metrics: m}

	for _, act := range rule.Actions {
		a.runAction(ctx, rule, act, evt, m)
	}
}

// runAction выполняет одно действие правила. Panic в действии журналируется
// и не мешает остальным действиям.
func (a *Analyzer) runAction(ctx context.Context, rule RuleInfo, act ActionType, evt AlertEvent, m *Metrics) {
	defer func() {
		if v := recover(); v != nil {
			a.log.Warn("panic в действии правила алертинга", "rule", rule.ID, "channel", string(act), "panic", fmt.Sprint(v))
		}
	}()

	switch act {
	case ActionLog:
		a.log.Warn("сработало правило алертинга",
			"rule", rule.ID,
			"severity", rule.Severity.String(),
			"total", m.Total,
			"last_hour", m.LastHour,
		)
	case ActionNotify:
		a.publisher.Publish(eventbus.Event{Type: eventbus.AlertTriggered, Source: "analytics", Payload: evt})
	case ActionWebhook:
		a.publisher.Publish(eventbus.Event{Type: eventbus.WebhookRequested, Source: "analytics", Payload: evt})
		a.deliver(ctx, rule, m, alerting.ChannelWebhook)
	case ActionEmail:
		a.publisher.Publish(eventbus.Event{Type: eventbus.EmailRequested, Source: "analytics", Payload: evt})
		a.deliver(ctx, rule, m, alerting.ChannelEmail)
	}
}

func (a *Analyzer) deliver(ctx context.Context, rule RuleInfo, m *Metrics, channel string) {
	alert := alerting.Alert{
		ErrorCode: topCode(m),
		Message:   fmt.Sprintf("%s: %d ошибок, за последний час %d", rule.Name, m.Total, m.LastHour),
		Timestamp: m.GeneratedAt,
		Rule:      rule.ID,
		Component: "analytics",
		Severity:  alertSeverity(rule.Severity),
		Channels:  []string{channel},
	}
	if err := a.alerter.Send(ctx, alert); err != nil {
		a.log.Warn("ошибка доставки алерта", "rule", rule.ID, "channel", channel, "error", err.Error())
	}
}

func topCode(m *Metrics) string {
	if len(m.TopCodes) == 0 {
		return ""
	}
	return string(m.TopCodes[0].Code)
}

func alertSeverity(s apperrors.Severity) alerting.Severity {
	switch {
	case s.AtLeast(apperrors.SeverityCritical):
		return alerting.SeverityCritical
	case s.AtLeast(apperrors.SeverityMedium):
		return alerting.SeverityWarning
	default:
		return alerting.SeverityInfo
	}
}
