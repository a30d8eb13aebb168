package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Форматы вывода.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Уровни.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Назначения вывода.
const (
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Значения по умолчанию.
const (
	DefaultLevel      = LevelInfo
	DefaultFormat     = FormatText
	DefaultOutput     = OutputStderr
	DefaultFilePath   = "/var/log/errmgr/errmgr.log"
	DefaultMaxSize    = 50 // MB
	DefaultMaxBackups = 5
	DefaultMaxAge     = 14 // days
	DefaultCompress   = true
)

// Config — настройки диагностического журнала процесса. Это не журнал
// ошибок приложения (internal/errorlog), а вывод самих компонентов pipeline.
type Config struct {
	Level  string
	Format string
	// Output — stderr или file. Пустое значение означает stderr.
	Output string

	// Параметры файла и ротации lumberjack (только для Output=file).
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool

	// AddSource добавляет в записи файл и строку вызова.
	AddSource bool
}

// DefaultConfig возвращает Config со значениями по умолчанию.
func DefaultConfig() Config {
	return Config{
		Level:      DefaultLevel,
		Format:     DefaultFormat,
		Output:     DefaultOutput,
		FilePath:   DefaultFilePath,
		MaxSize:    DefaultMaxSize,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAge,
		Compress:   DefaultCompress,
	}
}

// Validate проверяет значения, которые NewLogger иначе молча заменил бы
// значениями по умолчанию.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", FormatJSON, FormatText:
	default:
		return fmt.Errorf("logging: неизвестный формат %q", c.Format)
	}
	switch c.Output {
	case "", OutputStderr:
	case OutputFile:
		if c.FilePath == "" {
			return fmt.Errorf("logging: filePath обязателен при output=file")
		}
	default:
		return fmt.Errorf("logging: неизвестный output %q", c.Output)
	}
	return nil
}

// ParseLevel переводит имя уровня в slog.Level. Пустая строка — info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo, "":
		return slog.LevelInfo, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: неизвестный уровень %q", level)
	}
}
