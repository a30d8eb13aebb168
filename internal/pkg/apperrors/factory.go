package apperrors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// keywordRules — эвристики по тексту ошибки, применяются последними.
var keywordRules = []struct {
	keywords []string
	code     Code
}{
	{[]string{"out of memory", "cannot allocate memory"}, CodeSystemOutOfMemory},
	{[]string{"too many open files", "resource temporarily unavailable"}, CodeSystemResourceExhausted},
	{[]string{"connection refused"}, CodeNetworkConnectionRefused},
	{[]string{"connection reset", "broken pipe", "network is unreachable"}, CodeNetworkConnectionLost},
	{[]string{"timeout", "timed out", "deadline exceeded"}, CodeNetworkTimeout},
	{[]string{"too many requests", "rate limit"}, CodeNetworkRateLimited},
	{[]string{"no such host"}, CodeNetworkDNSFailed},
	{[]string{"unauthorized", "invalid credentials"}, CodeAuthInvalidCredentials},
	{[]string{"forbidden", "permission denied"}, CodeAuthPermissionDenied},
	{[]string{"token expired", "session expired"}, CodeAuthSessionExpired},
	{[]string{"database", "sql"}, CodeDatabaseQueryFailed},
	{[]string{"no space left"}, CodeFileDiskFull},
	{[]string{"parse", "unmarshal", "invalid character"}, CodeDataParseError},
	{[]string{"validation", "invalid"}, CodeDataValidationFailed},
	{[]string{"sensor"}, CodeSensorConnectionFailed},
	{[]string{"evidence"}, CodeEvidenceNotFound},
}

// Classify определяет код таксономии для произвольной ошибки.
// Сначала проверяются известные типы и sentinel-ошибки через errors.Is/As,
// затем ключевые слова в тексте. Неопознанная ошибка получает CodeUnknown.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeNetworkTimeout
	case errors.Is(err, syscall.ENOSPC):
		return CodeFileDiskFull
	case errors.Is(err, syscall.ENOMEM):
		return CodeSystemOutOfMemory
	case errors.Is(err, syscall.EMFILE):
		return CodeSystemResourceExhausted
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeNetworkConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return CodeNetworkConnectionLost
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn):
		return CodeDatabaseConnectionFailed
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, sql.ErrTxDone):
		return CodeDatabaseQueryFailed
	case errors.Is(err, os.ErrNotExist):
		return CodeFileNotFound
	case errors.Is(err, os.ErrPermission):
		return CodeFileAccessDenied
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeNetworkDNSFailed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeNetworkTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CodeNetworkConnectionLost
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return CodeDataParseError
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return CodeDataValidationFailed
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return CodeDataParseError
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return CodeFileWriteFailed
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(msg, kw) {
				return rule.code
			}
		}
	}
	return CodeUnknown
}

// FromError нормализует ошибку в ApplicationError.
// Уже нормализованная ошибка возвращается как есть (опции не применяются).
// Цепочка обёрнутых ошибок превращается в CausedBy глубиной не более MaxCauseDepth.
// Для nil возвращает nil.
func FromError(err error, opts ...Option) *ApplicationError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*ApplicationError); ok {
		return appErr
	}
	return fromError(err, 0, opts)
}

func fromError(err error, depth int, opts []Option) *ApplicationError {
	base := []Option{WithTechnicalDetails(technicalDetails(err))}
	if depth < MaxCauseDepth {
		if inner := errors.Unwrap(err); inner != nil {
			var cause *ApplicationError
			if appErr, ok := inner.(*ApplicationError); ok {
				cause = appErr
			} else {
				cause = fromError(inner, depth+1, nil)
			}
			base = append(base, WithCause(cause))
		}
	}
	return New(Classify(err), err.Error(), append(base, opts...)...)
}

func technicalDetails(err error) string {
	return fmt.Sprintf("%T: %v", err, err)
}
