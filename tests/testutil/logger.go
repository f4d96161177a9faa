package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/dsvault/internal/logging"
)

// TestLogger captures log output for validation in tests.
//
// It owns a *logging.Logger that writes uncoloured lines into an in-memory
// buffer, so code under test logs exactly as it does in production while the
// test verifies that secrets are redacted and expected lines are produced.
//
// Example usage:
//
//	logger := testutil.NewTestLogger(t)
//	client := vault.New(backend, vault.WithLogger(logger.Logger()))
//	// ... exercise client ...
//	logger.AssertRedacted(t, "s.session-token")
type TestLogger struct {
	buffer *syncBuffer
	logger *logging.Logger
}

// NewTestLogger creates a TestLogger with debug output disabled.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return NewTestLoggerWithDebug(t, false)
}

// NewTestLoggerWithDebug creates a TestLogger that also captures Debug lines when debug is true.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	buf := &syncBuffer{}
	return &TestLogger{
		buffer: buf,
		logger: logging.NewWithWriter(buf, debug, true),
	}
}

// Logger returns the logger to hand to code under test.
func (l *TestLogger) Logger() *logging.Logger {
	return l.logger
}

// Capture clears the buffer, runs fn and returns what it logged.
func (l *TestLogger) Capture(fn func()) string {
	l.Clear()
	fn()
	return l.GetOutput()
}

// GetOutput returns the captured log output as a string.
func (l *TestLogger) GetOutput() string {
	return l.buffer.String()
}

// Clear clears the captured log output.
func (l *TestLogger) Clear() {
	l.buffer.Reset()
}

// AssertContains asserts that the log output contains substr.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains asserts that the log output does NOT contain substr.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr, "Expected log output to NOT contain %q", substr)
}

// AssertRedacted asserts that secretValue never appears in the output
// and that at least one [REDACTED] marker does.
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()

	output := l.GetOutput()
	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in logs", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker in logs when secret is used")
}

// AssertLogCount asserts that a log level appears count times.
//
// Level markers:
//   - info: "✓"
//   - warn: "⚠"
//   - error: "✗"
//   - debug: "[DEBUG]"
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	var marker string
	switch level {
	case "info":
		marker = "✓"
	case "warn":
		marker = "⚠"
	case "error":
		marker = "✗"
	case "debug":
		marker = "[DEBUG]"
	default:
		t.Fatalf("Unknown log level: %s", level)
	}

	actual := strings.Count(l.GetOutput(), marker)
	assert.Equal(t, count, actual, "Expected %d %s log messages, got %d", count, level, actual)
}

// AssertEmpty asserts that no log output was captured.
func (l *TestLogger) AssertEmpty(t *testing.T) {
	t.Helper()

	output := l.GetOutput()
	assert.Empty(t, output, "Expected no log output, but got:\n%s", output)
}

// Lines returns the non-empty log lines.
func (l *TestLogger) Lines() []string {
	lines := strings.Split(l.GetOutput(), "\n")

	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
