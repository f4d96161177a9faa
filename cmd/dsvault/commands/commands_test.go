package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/dsvault/internal/config"
	"github.com/systmms/dsvault/internal/logging"
	"github.com/systmms/dsvault/pkg/vaultapi"
	"github.com/systmms/dsvault/tests/fakes"
)

// Command tests swap package level hooks, so none of them run in parallel.
func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

const baseConfig = `version: 0
server:
  address: http://127.0.0.1:8200
resources:
  kv_mounts: [secret]
  database_mounts: [db]
  unwrap: true
`

func useBackend(t *testing.T, backend vaultapi.Backend) {
	t.Helper()
	prev := newBackend
	newBackend = func(*config.Definition) (vaultapi.Backend, error) { return backend, nil }
	t.Cleanup(func() { newBackend = prev })
}

func newTestConfig(t *testing.T, content string, env map[string]string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dsvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &config.Config{
		Path:   path,
		Logger: logging.NewWithWriter(io.Discard, false, true),
		Getenv: func(k string) string { return env[k] },
	}
}

func tokenEnv(token string) map[string]string {
	return map[string]string{"VAULT_TOKEN": token}
}

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), err
}

func newFakeVault() *fakes.FakeBackend {
	return fakes.NewFakeBackend().
		WithToken("s.root").
		WithKV("secret", "app", map[string]interface{}{"apiKey": "abcde12345"})
}
