package errorlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// LineVersion — текущая версия формата строки журнала.
// Каждая строка несёт поле "v"; Query читает все версии до текущей включительно.
const LineVersion = 1

var (
	// ErrMalformedLine возвращается для строки, которую невозможно разобрать.
	ErrMalformedLine = errors.New("errorlog: повреждённая строка журнала")
	// ErrUnsupportedVersion возвращается для строки более новой версии формата.
	ErrUnsupportedVersion = errors.New("errorlog: неподдерживаемая версия строки журнала")
)

// Entry — запись журнала ошибок.
type Entry struct {
	Version   int                         `json:"v"`
	ID        string                      `json:"id"`
	Timestamp time.Time                   `json:"timestamp"`
	Level     apperrors.Severity          `json:"level"`
	Error     *apperrors.ApplicationError `json:"error"`
	Meta      map[string]string           `json:"meta,omitempty"`

	// Formatted — строка в том виде, в каком она записана в файл (без перевода строки).
	Formatted string `json:"-"`
}

// encodeLine сериализует запись в одну строку журнала.
// json: {"v":1,...}
// text: человекочитаемый префикс, TAB, затем та же JSON-строка.
func encodeLine(e *Entry, format string) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("errorlog: сериализация записи: %w", err)
	}
	if format != FormatText {
		return payload, nil
	}

	var b bytes.Buffer
	b.WriteString(textPrefix(e))
	b.WriteByte('\t')
	b.Write(payload)
	return b.Bytes(), nil
}

func textPrefix(e *Entry) string {
	component := e.Error.Context.Component
	if component == "" {
		component = "-"
	}
	prefix := fmt.Sprintf("%s [%s] %s %s/%s: %s",
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		strings.ToUpper(e.Level.String()),
		e.Error.Code,
		e.Error.Category,
		component,
		e.Error.Message,
	)
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, prefix)
}

// decodeLine разбирает строку любого формата.
func decodeLine(line []byte) (Entry, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Entry{}, ErrMalformedLine
	}
	payload := line
	if line[0] != '{' {
		// JSON не содержит «сырых» табуляций, поэтому первая TAB — разделитель.
		idx := bytes.IndexByte(line, '\t')
		if idx < 0 {
			return Entry{}, ErrMalformedLine
		}
		payload = line[idx+1:]
	}

	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}
	if e.Version < 1 || e.Version > LineVersion {
		return Entry{}, fmt.Errorf("%w: v=%d", ErrUnsupportedVersion, e.Version)
	}
	if e.Error == nil {
		return Entry{}, ErrMalformedLine
	}
	e.Formatted = string(line)
	return e, nil
}
