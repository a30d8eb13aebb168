// Package testutil содержит общие утилиты для тестирования.
package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CaptureStdout выполняет fn, перехватывая stdout. Pipe читается
// параллельно, поэтому объём вывода не ограничен буфером pipe.
func CaptureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err, "не удалось создать pipe для stdout")

	var buf bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := io.Copy(&buf, r)
		copied <- err
	}()

	oldStdout := os.Stdout
	os.Stdout = w
	func() {
		defer func() { os.Stdout = oldStdout }()
		fn()
	}()

	require.NoError(t, w.Close())
	require.NoError(t, <-copied, "не удалось прочитать stdout")
	_ = r.Close()
	return buf.String()
}

// WithStdin подменяет stdin содержимым input на время fn.
func WithStdin(t *testing.T, input string, fn func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	oldStdin := os.Stdin
	os.Stdin = f
	defer func() { os.Stdin = oldStdin }()
	fn()
}

// IsolateEnv направляет данные, журнал и конфигурацию errmgr во временный
// каталог теста и возвращает его.
func IsolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("EM_CONFIG", filepath.Join(dir, "config.yaml"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), nil, 0o600))
	t.Setenv("EM_DATA_DIR", dir)
	t.Setenv("EM_LOG_LEVEL", "error")
	t.Setenv("EM_REPORT_DISABLE_SIGNALS", "true")
	return dir
}
