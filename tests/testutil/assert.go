package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSecretRedacted verifies that a secret value does not appear in a
// string and that the [REDACTED] marker does.
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of secrets appears in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should not appear in output", secret)
	}
}

// AssertFileContents verifies that a file exists with the expected content
// and permission bits.
func AssertFileContents(t *testing.T, path string, expected string, perm os.FileMode) {
	t.Helper()

	info, err := os.Stat(path)
	if !assert.NoError(t, err, "File should exist: %s", path) {
		return
	}
	assert.Equal(t, perm, info.Mode().Perm(), "File mode mismatch for %s", path)

	data, err := os.ReadFile(path)
	assert.NoError(t, err, "Failed to read file %s", path)
	assert.Equal(t, expected, string(data), "File contents mismatch for %s", path)
}
