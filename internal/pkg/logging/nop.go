package logging

// NopLogger отбрасывает все записи.
type NopLogger struct{}

// NewNopLogger возвращает NopLogger.
func NewNopLogger() Logger {
	return NopLogger{}
}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// With возвращает тот же NopLogger.
func (n NopLogger) With(...any) Logger { return n }
