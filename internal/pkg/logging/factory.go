package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger создаёт Logger по конфигурации. При output=file запись идёт в
// файл с ротацией lumberjack; если файл недоступен, предупреждение пишется
// в stderr и логирование продолжается туда же.
func NewLogger(config Config) Logger {
	return NewLoggerWithWriter(config, openWriter(config))
}

func openWriter(config Config) io.Writer {
	switch config.Output {
	case "", OutputStderr:
		return os.Stderr
	case OutputFile:
	default:
		warnStderr("неизвестный logging output %q, используется stderr", config.Output)
		return os.Stderr
	}

	if config.FilePath == "" {
		warnStderr("output=file без filePath, используется stderr")
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o750); err != nil {
		warnStderr("не удалось создать каталог журнала %q: %v, используется stderr", filepath.Dir(config.FilePath), err)
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

func warnStderr(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "WARNING: "+format+"\n", args...) //nolint:errcheck // bootstrap stderr
}

// NewLoggerWithWriter создаёт Logger поверх w. Неизвестный уровень
// трактуется как info, неизвестный формат как text.
func NewLoggerWithWriter(config Config, w io.Writer) Logger {
	level, _ := ParseLevel(config.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: config.AddSource}

	var h slog.Handler
	if config.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(h))
}
