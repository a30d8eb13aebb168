// Package output форматирует результаты команд CLI errmgr в JSON или
// текст. Результат пишется в stdout; диагностический журнал идёт в stderr.
package output

import "time"

// Статусы результата.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIVersion — версия формата JSON результата.
const APIVersion = "v1"

// Result — результат одной команды.
type Result struct {
	Status   string     `json:"status"`
	Command  string     `json:"command"`
	Data     any        `json:"data,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
	Metadata *Metadata  `json:"metadata,omitempty"`

	// Summary выводится в JSON как metadata.summary.
	Summary *SummaryInfo `json:"-"`
}

// ErrorInfo — ошибка команды. Message не должен содержать секретов.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata — метаданные выполнения.
type Metadata struct {
	DurationMs int64        `json:"duration_ms"`
	TraceID    string       `json:"trace_id,omitempty"`
	APIVersion string       `json:"api_version"`
	Summary    *SummaryInfo `json:"summary,omitempty"`
}

// Success собирает успешный результат.
func Success(command string, data any, started time.Time, traceID string) *Result {
	return &Result{
		Status:   StatusSuccess,
		Command:  command,
		Data:     data,
		Metadata: newMetadata(started, traceID),
	}
}

// Failure собирает результат с ошибкой.
func Failure(command, code string, err error, started time.Time, traceID string) *Result {
	return &Result{
		Status:   StatusError,
		Command:  command,
		Error:    &ErrorInfo{Code: code, Message: err.Error()},
		Metadata: newMetadata(started, traceID),
	}
}

func newMetadata(started time.Time, traceID string) *Metadata {
	return &Metadata{
		DurationMs: time.Since(started).Milliseconds(),
		TraceID:    traceID,
		APIVersion: APIVersion,
	}
}
