package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"s.a1b2c3d4e5", "", "hvs.CAESIJ!@#"} {
		assert.Equal(t, "[REDACTED]", Secret(input).String())
		assert.Equal(t, "[REDACTED]", Secret(input).GoString())
		assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", Secret(input)))
	}
}

func TestLoggerWritesPlainLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("logged in via %s", "approle")
	logger.Warn("token %s expires soon", Secret("hvs.session"))
	logger.Error("read failed")

	out := buf.String()
	assert.Contains(t, out, "✓ logged in via approle\n")
	assert.Contains(t, out, "⚠ token [REDACTED] expires soon\n")
	assert.Contains(t, out, "✗ read failed\n")
	assert.NotContains(t, out, "hvs.session")
	assert.NotContains(t, out, "\033[")
}

func TestLoggerColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithWriter(&buf, false, false).Info("ok")

	assert.Equal(t, "\033[32m✓\033[0m ok\n", buf.String())
}

func TestLoggerDebugMode(t *testing.T) {
	t.Parallel()

	var quiet, verbose bytes.Buffer
	NewWithWriter(&quiet, false, true).Debug("dispatching %s", "vault:/secret/app")
	NewWithWriter(&verbose, true, true).Debug("dispatching %s", "vault:/secret/app")

	assert.Empty(t, quiet.String())
	assert.Equal(t, "[DEBUG] dispatching vault:/secret/app\n", verbose.String())
}

func TestNilAndDiscardLoggers(t *testing.T) {
	t.Parallel()

	var nilLogger *Logger
	assert.NotPanics(t, func() {
		nilLogger.Info("ignored")
		nilLogger.Debug("ignored")
	})
	assert.False(t, nilLogger.DebugEnabled())

	assert.NotPanics(t, func() { Discard().Error("dropped") })
}

func TestRedactFunction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		secrets  []string
		expected string
	}{
		{
			name:     "single secret redacted",
			input:    "login returned hvs.abcdef",
			secrets:  []string{"hvs.abcdef"},
			expected: "login returned [REDACTED]",
		},
		{
			name:     "multiple secrets redacted",
			input:    "role 1234-role secret 5678-secret",
			secrets:  []string{"1234-role", "5678-secret"},
			expected: "role [REDACTED] secret [REDACTED]",
		},
		{
			name:     "empty secret ignored",
			input:    "nothing here",
			secrets:  []string{""},
			expected: "nothing here",
		},
		{
			name:     "short secret ignored",
			input:    "Short secret: ab",
			secrets:  []string{"ab"},
			expected: "Short secret: ab",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Redact(tt.input, tt.secrets))
		})
	}
}
