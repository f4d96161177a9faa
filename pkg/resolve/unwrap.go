package resolve

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/systmms/dsvault/pkg/resource"
	"github.com/systmms/dsvault/pkg/vault"
)

// UnwrapPath is the path matched by UnwrapParser.
const UnwrapPath = "/sys/wrapping/unwrap"

// UnwrapParser matches scheme:/sys/wrapping/unwrap?token=<wrapping token>.
// The match is a deferred fetch: the token is unwrapped at dispatch time and
// the wrapped data is returned as JSON. Each wrapping token can be read once.
// The payload is marked secret.
func UnwrapParser(scheme string, client *vault.Client) resource.Parser {
	if scheme == "" {
		scheme = resource.DefaultScheme
	}
	scheme = strings.ToLower(scheme)
	return resource.CustomParser(func(u resource.URI) (resource.Custom, bool) {
		if u.Scheme != scheme || u.Path != UnwrapPath {
			return resource.Custom{}, false
		}
		token := u.Query.Get("token")
		if token == "" {
			return resource.Custom{}, false
		}
		return resource.CustomFetch(func(ctx context.Context) ([]byte, error) {
			raw, err := vault.Unwrap[json.RawMessage](ctx, client, token)
			if err != nil {
				return nil, err
			}
			return []byte(raw), nil
		}).AsSecret(), true
	})
}
