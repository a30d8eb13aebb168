package alerting

import "strings"

// RulesConfig — правила фильтрации алертов.
type RulesConfig struct {
	// MinSeverity — минимальный уровень ("INFO", "WARNING", "CRITICAL").
	MinSeverity string `yaml:"minSeverity" env:"EM_ALERTING_RULES_MIN_SEVERITY" env-default:"INFO"`

	// ExcludeRules — правила analytics, алерты которых не отправляются.
	ExcludeRules []string `yaml:"excludeRules" env:"EM_ALERTING_RULES_EXCLUDE" env-separator:","`

	// IncludeRules — если задан, отправляются алерты только этих правил.
	IncludeRules []string `yaml:"includeRules" env:"EM_ALERTING_RULES_INCLUDE" env-separator:","`

	// ExcludeErrorCodes — коды ошибок, для которых алерты не отправляются.
	ExcludeErrorCodes []string `yaml:"excludeErrorCodes" env:"EM_ALERTING_RULES_EXCLUDE_ERRORS" env-separator:","`

	// Channels — правила конкретных каналов. Переопределение канала
	// полностью заменяет глобальные правила, а не дополняет их.
	Channels map[string]ChannelRulesConfig `yaml:"channels"`
}

// ChannelRulesConfig — правила конкретного канала.
type ChannelRulesConfig struct {
	MinSeverity       string   `yaml:"minSeverity"`
	ExcludeRules      []string `yaml:"excludeRules"`
	IncludeRules      []string `yaml:"includeRules"`
	ExcludeErrorCodes []string `yaml:"excludeErrorCodes"`
}

type ruleConfig struct {
	minSeverity       Severity
	excludeRules      map[string]struct{}
	includeRules      map[string]struct{}
	excludeErrorCodes map[string]struct{}
}

// RulesEngine оценивает алерты по правилам фильтрации.
type RulesEngine struct {
	global   ruleConfig
	channels map[string]ruleConfig
}

// NewRulesEngine создаёт RulesEngine из конфигурации.
func NewRulesEngine(config RulesConfig) *RulesEngine {
	engine := &RulesEngine{
		global:   buildRuleConfig(config.MinSeverity, config.ExcludeRules, config.IncludeRules, config.ExcludeErrorCodes),
		channels: make(map[string]ruleConfig, len(config.Channels)),
	}
	for name, ch := range config.Channels {
		engine.channels[name] = buildRuleConfig(ch.MinSeverity, ch.ExcludeRules, ch.IncludeRules, ch.ExcludeErrorCodes)
	}
	return engine
}

// Evaluate проверяет, должен ли алерт быть отправлен в канал.
func (e *RulesEngine) Evaluate(alert Alert, channel string) bool {
	rule := e.global
	if override, ok := e.channels[channel]; ok {
		rule = override
	}

	if alert.Severity < rule.minSeverity {
		return false
	}
	if len(rule.includeRules) > 0 {
		if _, ok := rule.includeRules[alert.Rule]; !ok {
			return false
		}
	} else if _, ok := rule.excludeRules[alert.Rule]; ok {
		return false
	}
	if _, ok := rule.excludeErrorCodes[alert.ErrorCode]; ok {
		return false
	}
	return true
}

func parseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "WARNING":
		return SeverityWarning
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

func buildRuleConfig(minSeverity string, excludeRules, includeRules, excludeErrors []string) ruleConfig {
	return ruleConfig{
		minSeverity:       parseSeverity(minSeverity),
		excludeRules:      toSet(excludeRules),
		includeRules:      toSet(includeRules),
		excludeErrorCodes: toSet(excludeErrors),
	}
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}
