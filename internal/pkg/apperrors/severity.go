package apperrors

import (
	"fmt"
	"strings"
)

// Severity определяет уровень критичности ошибки.
// Значения упорядочены: SeverityInfo < SeverityLow < ... < SeverityCritical.
// Вся политика pipeline (уровень логирования, отправка отчётов, модальность
// уведомлений) строится на одном сравнении через AtLeast.
type Severity int

const (
	// SeverityInfo — информационное событие, не требует реакции.
	SeverityInfo Severity = iota
	// SeverityLow — незначительная ошибка, есть обходной путь.
	SeverityLow
	// SeverityMedium — ошибка затрагивает функциональность.
	SeverityMedium
	// SeverityHigh — серьёзная ошибка, требует внимания.
	SeverityHigh
	// SeverityCritical — приложение не может продолжать работу в штатном режиме.
	SeverityCritical
)

var severityNames = [...]string{
	SeverityInfo:     "info",
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

// String возвращает строковое представление Severity.
func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityCritical {
		return "unknown"
	}
	return severityNames[s]
}

// AtLeast возвращает true если s не ниже threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s >= threshold
}

// ParseSeverity конвертирует строку в Severity (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("apperrors: неизвестный уровень severity %q", s)
	}
}

// MarshalText реализует encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
