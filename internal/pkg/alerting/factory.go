package alerting

import (
	"fmt"

	"github.com/Kargones/errmgr/internal/pkg/logging"
)

// NewAlerter создаёт Alerter по конфигурации. Выключенный алертинг или
// отсутствие включённых каналов дают NopAlerter.
func NewAlerter(config Config, rules RulesConfig, logger logging.Logger) (Alerter, error) {
	if !config.Enabled {
		return NewNopAlerter(), nil
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	window := config.RateLimitWindow
	if window == 0 {
		window = DefaultRateLimitWindow
	}

	channels := make(map[string]Alerter)
	if config.Email.Enabled {
		email, err := NewEmailAlerter(config.Email, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("создание email alerter: %w", err)
		}
		channels[ChannelEmail] = email
	}
	if config.Webhook.Enabled {
		webhook, err := NewWebhookAlerter(config.Webhook, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("создание webhook alerter: %w", err)
		}
		channels[ChannelWebhook] = webhook
	}

	if len(channels) == 0 {
		logger.Warn("alerting включён, но нет включённых каналов")
		return NewNopAlerter(), nil
	}
	for name, ch := range rules.Channels {
		if rules.MinSeverity != "" && ch.MinSeverity == "" {
			logger.Warn("переопределение правил канала без minSeverity, используется INFO", "channel", name)
		}
	}

	return NewMultiChannelAlerter(channels, NewRulesEngine(rules), NewRateLimiter(window), logger), nil
}
