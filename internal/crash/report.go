// Package crash реализует Crash Reporter: перехват фатальных для процесса
// ситуаций (panic, сигналы завершения, гибель дочерних процессов),
// сохранение отчёта об аварии в файл и best-effort отправку сокращённой
// сводки на удалённый endpoint.
package crash

import (
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// Значения по умолчанию.
const (
	DefaultRetention      = 30 * 24 * time.Hour
	DefaultSweepInterval  = 24 * time.Hour
	DefaultTimeout        = 10 * time.Second
	DefaultMaxUserActions = 50
	// RemoteUserActions — сколько последних действий пользователя попадает в удалённую сводку.
	RemoteUserActions = 10
)

// Типы отслеживаемых действий пользователя.
const (
	ActionClick            = "click"
	ActionNavigation       = "navigation"
	ActionKeyboardShortcut = "keyboard_shortcut"
	ActionScriptError      = "script_error"
)

var (
	// ErrDirRequired возвращается если не указан каталог отчётов.
	ErrDirRequired = errors.New("crash: не указан каталог отчётов")
	// ErrInvalidReportID возвращается для некорректного идентификатора отчёта.
	ErrInvalidReportID = errors.New("crash: некорректный идентификатор отчёта")
)

// Config — настройки Crash Reporter.
type Config struct {
	// Dir — каталог файлов отчётов (<id>.json).
	Dir string
	// Endpoint — URL для отправки сводки; пусто — отправка отключена.
	Endpoint string
	// Token — bearer token для Endpoint.
	Token string
	// Timeout — таймаут HTTP запроса.
	Timeout time.Duration
	// Retention — отчёты старше удаляются периодической очисткой.
	Retention time.Duration
	// SweepInterval — период очистки.
	SweepInterval time.Duration
	// MaxUserActions — размер кольцевого буфера действий пользователя.
	MaxUserActions int
	// AppVersion — версия приложения для отчёта.
	AppVersion string
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.MaxUserActions <= 0 {
		c.MaxUserActions = DefaultMaxUserActions
	}
}

// ProcessInfo — идентификация процесса.
type ProcessInfo struct {
	PID        int           `json:"pid"`
	Executable string        `json:"executable,omitempty"`
	Hostname   string        `json:"hostname,omitempty"`
	GoVersion  string        `json:"goVersion"`
	Platform   string        `json:"platform"`
	AppVersion string        `json:"appVersion,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// Report — отчёт об аварии.
type Report struct {
	ID          string                      `json:"id"`
	Timestamp   time.Time                   `json:"timestamp"`
	Process     ProcessInfo                 `json:"process"`
	ExitCode    *int                        `json:"exitCode,omitempty"`
	Signal      string                      `json:"signal,omitempty"`
	Source      string                      `json:"source"`
	Dump        string                      `json:"dump,omitempty"`
	Error       *apperrors.ApplicationError `json:"error"`
	UserActions []apperrors.UserAction      `json:"userActions,omitempty"`
	System      apperrors.SystemSnapshot    `json:"system"`
}

// Summary — краткое описание отчёта для списка.
type Summary struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Source    string             `json:"source"`
	Code      apperrors.Code     `json:"code"`
	Severity  apperrors.Severity `json:"severity"`
	Message   string             `json:"message"`
}

// remoteSummary — сокращённая сводка для удалённого endpoint.
// Не содержит dump, технических подробностей и контекста пользователя.
type remoteSummary struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Platform    string           `json:"platform"`
	Source      string           `json:"source"`
	Error       remoteError      `json:"error"`
	UserActions []remoteUserStep `json:"userActions"`
}

type remoteError struct {
	Code     apperrors.Code     `json:"code"`
	Message  string             `json:"message"`
	Severity apperrors.Severity `json:"severity"`
}

type remoteUserStep struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newRemoteSummary(r *Report) remoteSummary {
	actions := r.UserActions
	if len(actions) > RemoteUserActions {
		actions = actions[len(actions)-RemoteUserActions:]
	}
	steps := make([]remoteUserStep, 0, len(actions))
	for _, a := range actions {
		steps = append(steps, remoteUserStep{Type: a.Type, Target: a.Target, Timestamp: a.Timestamp})
	}
	return remoteSummary{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Version:   r.Process.AppVersion,
		Platform:  r.Process.Platform,
		Source:    r.Source,
		Error: remoteError{
			Code:     r.Error.Code,
			Message:  r.Error.Message,
			Severity: r.Error.Severity,
		},
		UserActions: steps,
	}
}

func processInfo(appVersion string, started time.Time) ProcessInfo {
	exe, _ := os.Executable()
	host, _ := os.Hostname()
	return ProcessInfo{
		PID:        os.Getpid(),
		Executable: exe,
		Hostname:   host,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		AppVersion: appVersion,
		Uptime:     time.Since(started),
	}
}

// allStacks возвращает stack trace всех горутин.
func allStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		if len(buf) >= 4*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}
