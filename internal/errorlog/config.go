package errorlog

import (
	"errors"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// Форматы строк журнала.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Значения по умолчанию.
const (
	DefaultFileName              = "errors.log"
	DefaultMaxFileSize           = 10 * 1024 * 1024
	DefaultMaxFiles              = 5
	DefaultFlushInterval         = 5 * time.Second
	DefaultRotationCheckInterval = 60 * time.Second
	DefaultBufferSize            = 100
)

var (
	// ErrDirRequired возвращается если не указан каталог журнала.
	ErrDirRequired = errors.New("errorlog: не указан каталог журнала")
	// ErrInvalidFormat возвращается для неизвестного формата.
	ErrInvalidFormat = errors.New("errorlog: формат должен быть json или text")
	// ErrInvalidMaxFileSize возвращается для неположительного размера файла.
	ErrInvalidMaxFileSize = errors.New("errorlog: maxFileSize должен быть положительным")
	// ErrInvalidMaxFiles возвращается для отрицательного числа архивов.
	ErrInvalidMaxFiles = errors.New("errorlog: maxFiles не может быть отрицательным")
)

// Config — настройки журнала ошибок.
type Config struct {
	// Dir — каталог журнала.
	Dir string
	// FileName — имя текущего файла (по умолчанию errors.log).
	FileName string
	// Format — json или text.
	Format string
	// Level — минимальная severity записываемых ошибок.
	Level apperrors.Severity
	// MaxFileSize — размер текущего файла в байтах, после которого он ротируется.
	MaxFileSize int64
	// MaxFiles — сколько архивов хранить. 0 — архивы удаляются сразу после ротации.
	MaxFiles int
	// FlushInterval — период сброса буфера на диск.
	FlushInterval time.Duration
	// RotationCheckInterval — период проверки размера текущего файла.
	RotationCheckInterval time.Duration
	// BufferSize — число записей, при котором буфер сбрасывается досрочно.
	BufferSize int
}

// DefaultConfig возвращает конфигурацию по умолчанию для каталога dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                   dir,
		FileName:              DefaultFileName,
		Format:                FormatJSON,
		Level:                 apperrors.SeverityLow,
		MaxFileSize:           DefaultMaxFileSize,
		MaxFiles:              DefaultMaxFiles,
		FlushInterval:         DefaultFlushInterval,
		RotationCheckInterval: DefaultRotationCheckInterval,
		BufferSize:            DefaultBufferSize,
	}
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return ErrDirRequired
	}
	if c.Format != FormatJSON && c.Format != FormatText {
		return ErrInvalidFormat
	}
	if c.MaxFileSize <= 0 {
		return ErrInvalidMaxFileSize
	}
	if c.MaxFiles < 0 {
		return ErrInvalidMaxFiles
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.FileName == "" {
		c.FileName = DefaultFileName
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.RotationCheckInterval <= 0 {
		c.RotationCheckInterval = DefaultRotationCheckInterval
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
}
