package alerting

import (
	"context"
	"sort"

	"github.com/Kargones/errmgr/internal/pkg/logging"
)

// MultiChannelAlerter рассылает алерт по именованным каналам.
// Rate limiting применяется один раз для всех каналов.
type MultiChannelAlerter struct {
	channels     map[string]Alerter
	channelNames []string
	rules        *RulesEngine
	rateLimiter  *RateLimiter
	logger       logging.Logger
}

// NewMultiChannelAlerter создаёт MultiChannelAlerter. rules и rateLimiter могут быть nil.
func NewMultiChannelAlerter(channels map[string]Alerter, rules *RulesEngine, rateLimiter *RateLimiter, logger logging.Logger) *MultiChannelAlerter {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)

	return &MultiChannelAlerter{
		channels:     channels,
		channelNames: names,
		rules:        rules,
		rateLimiter:  rateLimiter,
		logger:       logger,
	}
}

// Send отправляет алерт в адресованные ему каналы в алфавитном порядке.
// Всегда возвращает nil.
func (m *MultiChannelAlerter) Send(ctx context.Context, alert Alert) error {
	targets := make([]string, 0, len(m.channelNames))
	for _, name := range m.channelNames {
		if alert.wants(name) {
			targets = append(targets, name)
		}
	}
	if len(targets) == 0 {
		m.logger.Debug("нет настроенных каналов для алерта", "rule", alert.Rule, "channels", alert.Channels)
		return nil
	}

	if m.rateLimiter != nil && !m.rateLimiter.Allow(alert.key()) {
		m.logger.Debug("алерт подавлен rate limiter", "rule", alert.Rule)
		return nil
	}

	for _, name := range targets {
		if ctx.Err() != nil {
			return nil
		}
		if m.rules != nil && !m.rules.Evaluate(alert, name) {
			m.logger.Debug("алерт отклонён правилами",
				"channel", name,
				"rule", alert.Rule,
				"severity", alert.Severity.String(),
			)
			continue
		}
		_ = m.channels[name].Send(ctx, alert)
	}
	return nil
}
