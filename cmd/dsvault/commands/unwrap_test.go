package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsvault/pkg/vault"
	"github.com/systmms/dsvault/tests/fakes"
)

func TestUnwrapCommand(t *testing.T) {
	backend := newFakeVault().
		WithWrappedData("s.wrap-1", map[string]interface{}{"password": "hunter2"})
	useBackend(t, backend)

	cfg := newTestConfig(t, baseConfig, nil)
	output, err := executeCommand(NewUnwrapCommand(cfg), "s.wrap-1")
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &payload))
	assert.Equal(t, "hunter2", payload["password"])

	cfg = newTestConfig(t, baseConfig, nil)
	_, err = executeCommand(NewUnwrapCommand(cfg), "s.wrap-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, vault.ErrBadRequest)
	assert.Contains(t, err.Error(), "single use")
	assert.Equal(t, 2, backend.CallCount(fakes.OpUnwrap))
}

func TestUnwrapCommand_RefusesSessionToken(t *testing.T) {
	backend := newFakeVault()
	useBackend(t, backend)

	cfg := newTestConfig(t, baseConfig, tokenEnv("s.root"))
	_, err := executeCommand(NewUnwrapCommand(cfg), "s.root")
	require.Error(t, err)
	assert.ErrorIs(t, err, vault.ErrInvalidArgument)
	assert.Equal(t, 0, backend.CallCount(fakes.OpUnwrap))
	assert.True(t, backend.HasToken("s.root"))
}
