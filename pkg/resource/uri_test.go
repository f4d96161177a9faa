package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsvault/pkg/vault"
)

func TestParseURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		wantScheme string
		wantPath   string
		wantQuery  map[string]string
	}{
		{name: "full", raw: "vault:/secret/app?version=2", wantScheme: "vault", wantPath: "/secret/app", wantQuery: map[string]string{"version": "2"}},
		{name: "default scheme", raw: "/secret/app", wantScheme: "vault", wantPath: "/secret/app"},
		{name: "double slash", raw: "vault://secret/app", wantScheme: "vault", wantPath: "/secret/app"},
		{name: "upper scheme", raw: "VAULT:/secret/app", wantScheme: "vault", wantPath: "/secret/app"},
		{name: "custom scheme", raw: "kv-prod:/secret/app", wantScheme: "kv-prod", wantPath: "/secret/app"},
		{name: "escaped path", raw: "vault:/secret/my%20app", wantScheme: "vault", wantPath: "/secret/my app"},
		{name: "token query", raw: "vault:/sys/wrapping/unwrap?token=s.abc", wantScheme: "vault", wantPath: "/sys/wrapping/unwrap", wantQuery: map[string]string{"token": "s.abc"}},
		{name: "surrounding space", raw: "  vault:/secret/app  ", wantScheme: "vault", wantPath: "/secret/app"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := ParseURI(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, u.Scheme)
			assert.Equal(t, tt.wantPath, u.Path)
			assert.Equal(t, tt.raw, u.Raw)
			for k, v := range tt.wantQuery {
				assert.Equal(t, v, u.Query.Get(k))
			}
		})
	}
}

func TestParseURI_Errors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"   ",
		"vault:",
		"vault:/",
		"vault:secret/app",
		"secret/app",
		"9vault:/secret/app",
		"vault:/secret/%zz",
		"vault:/secret/app?version=%zz",
	} {
		raw := raw
		t.Run(raw, func(t *testing.T) {
			t.Parallel()

			_, err := ParseURI(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, vault.ErrUnsupportedURL), "got %v", err)
		})
	}
}

func TestURI_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "vault:/secret/app?version=2", MustParseURI("vault://secret/app?version=2").String())
	assert.Equal(t, "vault:/secret/app", MustParseURI("/secret/app").String())
}
