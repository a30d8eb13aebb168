package alerting

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/smtp"
	"sync"

	"github.com/Kargones/errmgr/internal/pkg/logging"
)

// testLogger запоминает сообщения по уровням.
type testLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (l *testLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *testLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *testLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnMsgs = append(l.warnMsgs, msg)
}

func (l *testLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorMsgs = append(l.errorMsgs, msg)
}

func (l *testLogger) With(_ ...any) logging.Logger { return l }

func (l *testLogger) errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errorMsgs...)
}

// mockAlerter считает вызовы Send.
type mockAlerter struct {
	mu        sync.Mutex
	sendCount int
	lastAlert Alert
	sendError error
}

func (m *mockAlerter) Send(_ context.Context, alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCount++
	m.lastAlert = alert
	return m.sendError
}

func (m *mockAlerter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCount
}

// mockSMTPClient реализует SMTPClient для тестирования.
type mockSMTPClient struct {
	startTLSCalled bool
	authCalled     bool
	mailFrom       string
	rcptTo         []string
	messageData    string
	closeCalled    bool

	authErr    error
	rcptErr    error
	extensions map[string]string
}

func (m *mockSMTPClient) StartTLS(*tls.Config) error {
	m.startTLSCalled = true
	return nil
}

func (m *mockSMTPClient) Auth(smtp.Auth) error {
	m.authCalled = true
	return m.authErr
}

func (m *mockSMTPClient) Mail(from string) error {
	m.mailFrom = from
	return nil
}

func (m *mockSMTPClient) Rcpt(to string) error {
	m.rcptTo = append(m.rcptTo, to)
	return m.rcptErr
}

func (m *mockSMTPClient) Data() (WriteCloser, error) {
	return &mockWriteCloser{client: m}, nil
}

func (m *mockSMTPClient) Close() error {
	m.closeCalled = true
	return nil
}

func (m *mockSMTPClient) Extension(ext string) (bool, string) {
	if m.extensions == nil {
		m.extensions = map[string]string{"STARTTLS": ""}
	}
	v, ok := m.extensions[ext]
	return ok, v
}

type mockWriteCloser struct {
	client *mockSMTPClient
	buf    bytes.Buffer
}

func (w *mockWriteCloser) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *mockWriteCloser) Close() error {
	w.client.messageData = w.buf.String()
	return nil
}

type mockSMTPDialer struct {
	client  *mockSMTPClient
	dialErr error
}

func (d *mockSMTPDialer) DialContext(context.Context, string) (SMTPClient, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.client, nil
}
