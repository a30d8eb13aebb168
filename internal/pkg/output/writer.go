package output

import (
	"io"
	"strings"
)

// Форматы вывода.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Writer форматирует Result.
type Writer interface {
	Write(w io.Writer, result *Result) error
}

// NewWriter возвращает Writer формата format (без учёта регистра).
// Неизвестный формат означает text.
func NewWriter(format string) Writer {
	if strings.EqualFold(format, FormatJSON) {
		return JSONWriter{}
	}
	return TextWriter{}
}
