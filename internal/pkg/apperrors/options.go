package apperrors

import (
	"runtime/debug"
	"time"
)

// Option модифицирует ApplicationError при создании через New.
type Option func(*ApplicationError)

// WithSeverity переопределяет severity из таблицы кодов.
func WithSeverity(s Severity) Option {
	return func(e *ApplicationError) { e.Severity = s }
}

// WithCategory переопределяет категорию из таблицы кодов.
func WithCategory(c Category) Option {
	return func(e *ApplicationError) { e.Category = c }
}

// WithContext задаёт контекст ошибки целиком. Пустой Timestamp заменяется
// временем создания ошибки.
func WithContext(ctx ErrorContext) Option {
	return func(e *ApplicationError) {
		if ctx.Timestamp.IsZero() {
			ctx.Timestamp = e.Timestamp
		}
		e.Context = ctx
	}
}

// WithComponent задаёт компонент и функцию-источник.
func WithComponent(component, function string) Option {
	return func(e *ApplicationError) {
		e.Context.Component = component
		e.Context.Function = function
	}
}

// WithUser привязывает ошибку к пользователю и сессии.
func WithUser(userID, sessionID string) Option {
	return func(e *ApplicationError) {
		e.Context.UserID = userID
		e.Context.SessionID = sessionID
	}
}

// WithInvestigation привязывает ошибку к расследованию.
func WithInvestigation(id string) Option {
	return func(e *ApplicationError) { e.Context.InvestigationID = id }
}

// WithCorrelationID задаёт идентификатор корреляции.
func WithCorrelationID(id string) Option {
	return func(e *ApplicationError) { e.CorrelationID = id }
}

// WithCause задаёт причину. Цепочка длиннее MaxCauseDepth обрезается.
func WithCause(cause *ApplicationError) Option {
	return func(e *ApplicationError) { e.CausedBy = cause }
}

// WithMetadata задаёт диагностические данные.
func WithMetadata(m Metadata) Option {
	return func(e *ApplicationError) { e.Metadata = m }
}

// WithUserMessage переопределяет сообщение для пользователя.
func WithUserMessage(msg string) Option {
	return func(e *ApplicationError) { e.UserMessage = msg }
}

// WithTechnicalDetails задаёт технические подробности.
func WithTechnicalDetails(details string) Option {
	return func(e *ApplicationError) { e.TechnicalDetails = details }
}

// WithSuggestions заменяет список подсказок.
func WithSuggestions(s ...string) Option {
	return func(e *ApplicationError) { e.Suggestions = append([]string(nil), s...) }
}

// WithRecoverable переопределяет признак восстанавливаемости.
func WithRecoverable(r bool) Option {
	return func(e *ApplicationError) { e.Recoverable = r }
}

// WithTimestamp задаёт время возникновения ошибки.
func WithTimestamp(t time.Time) Option {
	return func(e *ApplicationError) {
		e.Timestamp = t
		e.Context.Timestamp = t
	}
}

// WithStack сохраняет stack trace текущей горутины.
func WithStack() Option {
	return func(e *ApplicationError) { e.Metadata.StackTrace = string(debug.Stack()) }
}
