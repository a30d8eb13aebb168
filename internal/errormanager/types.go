// Package errormanager реализует Error Manager: единую точку входа
// HandleError, которая нормализует сбой в ApplicationError и проводит его
// через очередь обработки: пороги, обработчики, локальное восстановление,
// журнал, отчёт об аварии, диалог пользователю и следующее действие.
package errormanager

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Kargones/errmgr/internal/errorlog"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/recovery"
)

// Action — следующее действие после обработки ошибки.
type Action string

// Следующие действия в порядке возрастания приоритета.
const (
	ActionContinue         Action = "continue"
	ActionRetry            Action = "retry"
	ActionUserIntervention Action = "user_intervention"
	ActionSafeMode         Action = "safe_mode"
	ActionRestart          Action = "restart"
	ActionShutdown         Action = "shutdown"
)

var actionRank = map[Action]int{
	ActionContinue:         0,
	ActionRetry:            1,
	ActionUserIntervention: 2,
	ActionSafeMode:         3,
	ActionRestart:          4,
	ActionShutdown:         5,
}

// escalate возвращает более приоритетное из двух действий.
func escalate(current, next Action) Action {
	if actionRank[next] > actionRank[current] {
		return next
	}
	return current
}

var (
	// ErrQueueClosed возвращается после Close.
	ErrQueueClosed = errors.New("errormanager: очередь закрыта")
	// ErrDialogNotFound возвращается для неизвестного или уже закрытого диалога.
	ErrDialogNotFound = errors.New("errormanager: диалог не найден")
	// ErrUnknownDialogAction возвращается для действия, которого нет в диалоге.
	ErrUnknownDialogAction = errors.New("errormanager: неизвестное действие диалога")
	// ErrInvalidHandler возвращается для обработчика без ID или функции.
	ErrInvalidHandler = errors.New("errormanager: некорректный обработчик")
	// ErrInvalidThreshold возвращается для некорректного порога.
	ErrInvalidThreshold = errors.New("errormanager: некорректный порог")
)

// Result — итог обработки одной ошибки.
type Result struct {
	ErrorID      string `json:"errorId,omitempty"`
	Handled      bool   `json:"handled"`
	Recovered    bool   `json:"recovered"`
	UserNotified bool   `json:"userNotified"`
	Logged       bool   `json:"logged"`
	Reported     bool   `json:"reported"`
	NextAction   Action `json:"nextAction"`
	ReportID     string `json:"reportId,omitempty"`
	DialogID     string `json:"dialogId,omitempty"`
}

// Filter включает и выключает шаги обработки для конкретной ошибки.
type Filter interface {
	ShouldProcess(e *apperrors.ApplicationError) bool
	ShouldLog(e *apperrors.ApplicationError) bool
	ShouldReport(e *apperrors.ApplicationError) bool
	ShouldNotify(e *apperrors.ApplicationError) bool
}

// DefaultFilter — фильтр по уровням severity.
type DefaultFilter struct {
	// LogLevel — минимальный уровень для записи в журнал.
	LogLevel apperrors.Severity
	// ReportLevel — минимальный уровень для отчёта об аварии.
	ReportLevel apperrors.Severity
	// NotifyLevel — минимальный уровень для диалога пользователю.
	NotifyLevel apperrors.Severity
	// IgnoreCodes — коды, которые не обрабатываются вовсе.
	IgnoreCodes []apperrors.Code
}

// NewDefaultFilter: журнал от low, отчёт от high, диалог от medium.
func NewDefaultFilter() *DefaultFilter {
	return &DefaultFilter{
		LogLevel:    apperrors.SeverityLow,
		ReportLevel: apperrors.SeverityHigh,
		NotifyLevel: apperrors.SeverityMedium,
	}
}

func (f *DefaultFilter) ShouldProcess(e *apperrors.ApplicationError) bool {
	return !slices.Contains(f.IgnoreCodes, e.Code)
}

func (f *DefaultFilter) ShouldLog(e *apperrors.ApplicationError) bool {
	return e.Severity.AtLeast(f.LogLevel)
}

func (f *DefaultFilter) ShouldReport(e *apperrors.ApplicationError) bool {
	return e.Severity.AtLeast(f.ReportLevel)
}

func (f *DefaultFilter) ShouldNotify(e *apperrors.ApplicationError) bool {
	return e.Severity.AtLeast(f.NotifyLevel)
}

// Transformer превращает произвольную ошибку в ApplicationError.
type Transformer interface {
	Transform(ctx context.Context, err error) *apperrors.ApplicationError
}

// TransformerFunc адаптирует функцию к Transformer.
type TransformerFunc func(ctx context.Context, err error) *apperrors.ApplicationError

// Transform вызывает f.
func (f TransformerFunc) Transform(ctx context.Context, err error) *apperrors.ApplicationError {
	return f(ctx, err)
}

// HandlerOutcome — результат обработчика.
type HandlerOutcome struct {
	Handled    bool
	Recovered  bool
	NextAction Action
}

// Handler — подключаемый обработчик ошибок.
type Handler struct {
	ID       string
	Priority int
	// CanHandle — фильтр; nil означает все ошибки.
	CanHandle func(e *apperrors.ApplicationError) bool
	Handle    func(ctx context.Context, e *apperrors.ApplicationError) (HandlerOutcome, error)
}

// Recoverer — локальное восстановление (*recovery.Manager).
type Recoverer interface {
	Applicable(e *apperrors.ApplicationError) (recovery.Strategy, bool)
	RunSession(ctx context.Context, s recovery.Strategy, e *apperrors.ApplicationError) recovery.Result
}

// ErrorLogger — журнал ошибок (*errorlog.Logger).
type ErrorLogger interface {
	Log(e *apperrors.ApplicationError) (*errorlog.Entry, error)
}

// CrashReporter — Crash Reporter (*crash.Reporter).
type CrashReporter interface {
	Report(ctx context.Context, err error) (string, error)
}

// AnalyticsRecorder — Error Analytics (*analytics.Analyzer).
type AnalyticsRecorder interface {
	RecordError(e *apperrors.ApplicationError)
	RecordRecovery(errorID string)
}

// Stats — счётчики Error Manager.
type Stats struct {
	Processed     int64 `json:"processed"`
	Skipped       int64 `json:"skipped"`
	Handled       int64 `json:"handled"`
	Recovered     int64 `json:"recovered"`
	Logged        int64 `json:"logged"`
	Reported      int64 `json:"reported"`
	Notified      int64 `json:"notified"`
	ThresholdHits int64 `json:"thresholdHits"`
	Retries       int64 `json:"retries"`
	Failures      int64 `json:"failures"`
	QueueDepth    int   `json:"queueDepth"`
	PendingDialog int   `json:"pendingDialogs"`
}

// Config — настройки Error Manager.
type Config struct {
	// QueueSize — ёмкость очереди обработки.
	QueueSize int
	// RetryDelay — задержка повторной постановки в очередь для retry.
	RetryDelay time.Duration
	// MaxRetries — сколько раз одна ошибка может быть поставлена повторно.
	// Отрицательное значение отключает повторы.
	MaxRetries int
	// ShowTechnicalDetails добавляет TechnicalDetails в диалог.
	ShowTechnicalDetails bool
	// AutoClose — время автозакрытия диалогов уровня low и info.
	AutoClose time.Duration
	// MaxPendingDialogs — сколько неразрешённых диалогов хранится для ResolveDialog.
	MaxPendingDialogs int
	// Thresholds — пороги, зарегистрированные при создании.
	Thresholds []Threshold
}

// Значения по умолчанию.
const (
	DefaultQueueSize         = 1000
	DefaultRetryDelay        = time.Second
	DefaultMaxRetries        = 3
	DefaultAutoClose         = 10 * time.Second
	DefaultMaxPendingDialogs = 100
)

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.AutoClose <= 0 {
		c.AutoClose = DefaultAutoClose
	}
	if c.MaxPendingDialogs <= 0 {
		c.MaxPendingDialogs = DefaultMaxPendingDialogs
	}
}
