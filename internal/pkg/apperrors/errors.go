// Package apperrors предоставляет каноническую модель ошибки приложения
// (ApplicationError), таксономию кодов и фабрику для нормализации
// произвольных Go-ошибок.
package apperrors

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxCauseDepth ограничивает глубину цепочки CausedBy.
const MaxCauseDepth = 5

// ErrorContext описывает место и окружение, в котором возникла ошибка.
type ErrorContext struct {
	Component       string    `json:"component,omitempty"`
	Function        string    `json:"function,omitempty"`
	File            string    `json:"file,omitempty"`
	Line            int       `json:"line,omitempty"`
	UserID          string    `json:"userId,omitempty"`
	SessionID       string    `json:"sessionId,omitempty"`
	InvestigationID string    `json:"investigationId,omitempty"`
	Hostname        string    `json:"hostname,omitempty"`
	Runtime         string    `json:"runtime,omitempty"`
	AppVersion      string    `json:"appVersion,omitempty"`
	Environment     string    `json:"environment,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// UserAction — действие пользователя, предшествовавшее ошибке.
type UserAction struct {
	Type      string            `json:"type"`
	Target    string            `json:"target,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// SystemSnapshot — снимок состояния системы на момент ошибки.
type SystemSnapshot struct {
	HeapAllocBytes uint64  `json:"heapAllocBytes"`
	HeapSysBytes   uint64  `json:"heapSysBytes"`
	Goroutines     int     `json:"goroutines"`
	CPUPercent     float64 `json:"cpuPercent"`
	DiskTotalBytes uint64  `json:"diskTotalBytes,omitempty"`
	DiskFreeBytes  uint64  `json:"diskFreeBytes,omitempty"`
	ProcessCount   int     `json:"processCount,omitempty"`
}

// PerformanceCounters — счётчики производительности операции.
type PerformanceCounters struct {
	DurationMs  int64   `json:"durationMs,omitempty"`
	MemoryBytes uint64  `json:"memoryBytes,omitempty"`
	CPUPercent  float64 `json:"cpuPercent,omitempty"`
}

// Metadata — диагностические данные, прикреплённые к ошибке.
type Metadata struct {
	StackTrace  string               `json:"stackTrace,omitempty"`
	UserActions []UserAction         `json:"userActions,omitempty"`
	System      *SystemSnapshot      `json:"system,omitempty"`
	Performance *PerformanceCounters `json:"performance,omitempty"`
}

// ApplicationError — каноническая нормализованная запись об ошибке.
// После создания не изменяется: компоненты pipeline, которым нужна
// модификация, работают с копией через Clone.
//
// ВАЖНО: Message и TechnicalDetails НЕ ДОЛЖНЫ содержать секреты.
type ApplicationError struct {
	ID               string            `json:"id"`
	Code             Code              `json:"code"`
	Message          string            `json:"message"`
	Severity         Severity          `json:"severity"`
	Category         Category          `json:"category"`
	Context          ErrorContext      `json:"context"`
	Timestamp        time.Time         `json:"timestamp"`
	CorrelationID    string            `json:"correlationId,omitempty"`
	CausedBy         *ApplicationError `json:"causedBy,omitempty"`
	Metadata         Metadata          `json:"metadata"`
	Recoverable      bool              `json:"recoverable"`
	UserMessage      string            `json:"userMessage,omitempty"`
	TechnicalDetails string            `json:"technicalDetails,omitempty"`
	Suggestions      []string          `json:"suggestions,omitempty"`
}

// New создаёт ApplicationError для кода из таксономии.
// Категория, severity, recoverable, пользовательское сообщение и подсказки
// берутся из таблицы кодов; опции переопределяют их.
func New(code Code, message string, opts ...Option) *ApplicationError {
	info, _ := Lookup(code)
	now := time.Now()
	e := &ApplicationError{
		ID:          uuid.NewString(),
		Code:        code,
		Message:     message,
		Severity:    info.Severity,
		Category:    info.Category,
		Timestamp:   now,
		Recoverable: info.Recoverable,
		UserMessage: info.UserMessage,
		Suggestions: append([]string(nil), info.Suggestions...),
	}
	e.Context.Timestamp = now
	for _, opt := range opts {
		opt(e)
	}
	e.CausedBy = truncateCause(e.CausedBy, MaxCauseDepth)
	return e
}

// Error реализует интерфейс error.
func (e *ApplicationError) Error() string {
	if e.CausedBy != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.CausedBy.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает причину для errors.Is/As.
func (e *ApplicationError) Unwrap() error {
	if e.CausedBy == nil {
		return nil
	}
	return e.CausedBy
}

// Is сравнивает ошибки по коду, что позволяет errors.Is(err, &ApplicationError{Code: ...}).
func (e *ApplicationError) Is(target error) bool {
	t, ok := target.(*ApplicationError)
	if !ok {
		return false
	}
	return t.ID == "" && t.Code == e.Code
}

// Clone возвращает глубокую копию ошибки.
func (e *ApplicationError) Clone() *ApplicationError {
	if e == nil {
		return nil
	}
	c := *e
	c.Suggestions = append([]string(nil), e.Suggestions...)
	c.Metadata.UserActions = append([]UserAction(nil), e.Metadata.UserActions...)
	if e.Metadata.System != nil {
		s := *e.Metadata.System
		c.Metadata.System = &s
	}
	if e.Metadata.Performance != nil {
		p := *e.Metadata.Performance
		c.Metadata.Performance = &p
	}
	c.CausedBy = e.CausedBy.Clone()
	return &c
}

// CauseDepth возвращает длину цепочки CausedBy.
func (e *ApplicationError) CauseDepth() int {
	depth := 0
	for c := e.CausedBy; c != nil; c = c.CausedBy {
		depth++
	}
	return depth
}

// RootCause возвращает последнюю ошибку в цепочке CausedBy (или саму ошибку).
func (e *ApplicationError) RootCause() *ApplicationError {
	cur := e
	for cur.CausedBy != nil {
		cur = cur.CausedBy
	}
	return cur
}

func truncateCause(cause *ApplicationError, depth int) *ApplicationError {
	if cause == nil {
		return nil
	}
	if depth <= 0 {
		return nil
	}
	if cause.CauseDepth() < depth {
		return cause
	}
	c := *cause
	c.CausedBy = truncateCause(cause.CausedBy, depth-1)
	return &c
}
