// Package recovery реализует Recovery Manager: реестр стратегий
// восстановления по коду ошибки, ограниченный по числу попыток цикл
// восстановления с задержкой, общим таймаутом и fallback, а также реестр
// действий восстановления, сгруппированных по типу.
package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

var (
	// ErrInvalidStrategy возвращается при регистрации некорректной стратегии.
	ErrInvalidStrategy = errors.New("recovery: некорректная стратегия")
	// ErrInvalidAction возвращается при регистрации некорректного действия.
	ErrInvalidAction = errors.New("recovery: некорректное действие")
	// ErrDuplicateAction возвращается при повторной регистрации действия с тем же ID.
	ErrDuplicateAction = errors.New("recovery: действие с таким ID уже зарегистрировано")
	// ErrAttemptTimeout — попытка не завершилась в оставшееся время сессии.
	ErrAttemptTimeout = errors.New("recovery: попытка превысила время сессии")
	// ErrNoActions — для типа и категории ошибки нет подходящих действий.
	ErrNoActions = errors.New("recovery: нет подходящих действий")
)

// ActionFunc — одна попытка восстановления. true означает успех.
type ActionFunc func(ctx context.Context, e *apperrors.ApplicationError) (bool, error)

// Strategy — стратегия восстановления для кода ошибки.
type Strategy struct {
	Code apperrors.Code
	// MaxAttempts — максимальное число вызовов Action за сессию.
	MaxAttempts int
	// Delay — пауза между попытками (после последней не выполняется).
	Delay time.Duration
	// Timeout — общий лимит времени сессии; 0 — без ограничения.
	Timeout time.Duration
	// Condition — допускает стратегию к ошибке; nil означает «всегда».
	Condition func(e *apperrors.ApplicationError) bool
	// Action — сама попытка восстановления.
	Action ActionFunc
	// Fallback выполняется один раз, если все попытки неудачны.
	Fallback func(ctx context.Context, e *apperrors.ApplicationError) error
}

// Validate проверяет стратегию.
func (s *Strategy) Validate() error {
	switch {
	case s.Code == "":
		return errors.Join(ErrInvalidStrategy, errors.New("не задан код"))
	case s.MaxAttempts <= 0:
		return errors.Join(ErrInvalidStrategy, errors.New("maxAttempts должен быть положительным"))
	case s.Action == nil:
		return errors.Join(ErrInvalidStrategy, errors.New("не задано действие"))
	case s.Delay < 0 || s.Timeout < 0:
		return errors.Join(ErrInvalidStrategy, errors.New("отрицательные delay/timeout"))
	}
	return nil
}

// Applies проверяет Condition.
func (s *Strategy) Applies(e *apperrors.ApplicationError) bool {
	return s.Condition == nil || s.Condition(e)
}

// Outcome — итог сессии восстановления.
type Outcome string

// Итоги сессии.
const (
	OutcomeRunning   Outcome = "running"
	OutcomeRecovered Outcome = "recovered"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

// AttemptResult — результат одной попытки.
type AttemptResult struct {
	Attempt  int           `json:"attempt"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Context — состояние одной сессии восстановления.
type Context struct {
	SessionID       string             `json:"sessionId"`
	ErrorID         string             `json:"errorId"`
	Code            apperrors.Code     `json:"code"`
	Category        apperrors.Category `json:"category"`
	AttemptNumber   int                `json:"attemptNumber"`
	TotalAttempts   int                `json:"totalAttempts"`
	PreviousResults []AttemptResult    `json:"previousResults"`
	StartTime       time.Time          `json:"startTime"`
	LastAttemptTime time.Time          `json:"lastAttemptTime"`
	EndTime         time.Time          `json:"endTime"`
	Outcome         Outcome            `json:"outcome"`
	FallbackRun     bool               `json:"fallbackRun"`
	FallbackError   string             `json:"fallbackError,omitempty"`
}

func (c *Context) clone() Context {
	out := *c
	out.PreviousResults = append([]AttemptResult(nil), c.PreviousResults...)
	return out
}

// Result — результат сессии.
type Result struct {
	Recovered bool
	Context   Context
}

// Stats — счётчики Recovery Manager.
type Stats struct {
	Sessions   int64 `json:"sessions"`
	Recovered  int64 `json:"recovered"`
	Failed     int64 `json:"failed"`
	TimedOut   int64 `json:"timedOut"`
	Rejected   int64 `json:"rejected"`
	Attempts   int64 `json:"attempts"`
	Active     int   `json:"active"`
	Strategies int   `json:"strategies"`
	Actions    int   `json:"actions"`
}
