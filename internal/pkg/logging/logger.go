// Package logging — структурированный диагностический журнал компонентов
// (slog). Пары ключ-значение передаются после сообщения:
//
//	log.Warn("стратегия не восстановила ошибку", "error_code", code, "attempts", n)
package logging

// Logger — интерфейс журнала, который получают все компоненты.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With возвращает Logger, добавляющий args ко всем записям.
	With(args ...any) Logger
}
