package resource

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsvault/pkg/vault"
)

func intPtr(v int) *int { return &v }

func TestKeyValueReaderParser(t *testing.T) {
	t.Parallel()

	mounts := []string{"secret", "team/kv", "kv-v2"}
	keys := []string{"app", "app/db", "a/b/c", "dev-secret"}
	versions := []*int{nil, intPtr(0), intPtr(1), intPtr(42)}

	for _, mount := range mounts {
		for _, key := range keys {
			for _, version := range versions {
				mount, key, version := mount, key, version
				raw := fmt.Sprintf("vault:/%s/%s", mount, key)
				if version != nil {
					raw += fmt.Sprintf("?version=%d", *version)
				}

				t.Run(raw, func(t *testing.T) {
					t.Parallel()

					m := vault.MustMountPath(mount)
					res, ok := KeyValueReaderParser("vault", m).Parse(MustParseURI(raw))
					require.True(t, ok)

					kv, isKV := res.(KeyValue)
					require.True(t, isKV)
					assert.Equal(t, m, kv.Mount)
					assert.Equal(t, key, kv.Key)
					assert.Equal(t, version, kv.Version)
					assert.Equal(t, EngineKeyValue, kv.Engine())

					for _, other := range mounts {
						if other == mount {
							continue
						}
						_, ok := KeyValueReaderParser("vault", vault.MustMountPath(other)).Parse(MustParseURI(raw))
						assert.False(t, ok, "mount %s must not match %s", other, raw)
					}
				})
			}
		}
	}
}

func TestKeyValueReaderParser_NoMatch(t *testing.T) {
	t.Parallel()

	p := KeyValueReaderParser("vault", vault.MustMountPath("secret"))

	for _, raw := range []string{
		"vault:/secret",
		"vault:/secret/",
		"vault:/secrets/app",
		"vault:/Secret/app",
		"vault:/other/secret/app",
		"other:/secret/app",
		"vault:/secret/app?version=abc",
		"vault:/secret/app?version=-1",
		"vault:/secret/app?version=1&version=2",
		"vault:/secret/a//b",
		"vault:/secret/./app",
		"vault:/secret/..",
		"vault:/secret/../database/creds/admin",
		"vault:/secret/app/../other",
	} {
		raw := raw
		t.Run(raw, func(t *testing.T) {
			t.Parallel()

			res, ok := p.Parse(MustParseURI(raw))
			assert.False(t, ok)
			assert.Nil(t, res)
		})
	}
}

func TestMissingVersionIsAbsent(t *testing.T) {
	t.Parallel()

	m := vault.MustMountPath("secret")
	parsers := []Parser{KeyValueReaderParser("", m), KeyValueDataPathParser("", m)}
	uris := []string{"vault:/secret/data/app", "vault:/secret/data/app?other=1"}

	for _, p := range parsers {
		for _, raw := range uris {
			res, ok := p.Parse(MustParseURI(raw))
			require.True(t, ok)
			assert.Nil(t, res.(KeyValue).Version, "%s", raw)
		}
	}
}

func TestKeyValueDataPathParser(t *testing.T) {
	t.Parallel()

	m := vault.MustMountPath("secret")
	p := KeyValueDataPathParser("vault", m)

	res, ok := p.Parse(MustParseURI("vault:/secret/data/app/db?version=3"))
	require.True(t, ok)
	assert.Equal(t, KeyValue{Mount: m, Key: "app/db", Version: intPtr(3)}, res)

	for _, raw := range []string{
		"vault:/secret/app/db",
		"vault:/secret/metadata/app",
		"vault:/secret/data",
		"vault:/secret/data/",
		"vault:/secret/dataset/app",
		"vault:/other/data/app",
		"vault:/secret/data/../x",
		"vault:/secret/data/./app",
	} {
		_, ok := p.Parse(MustParseURI(raw))
		assert.False(t, ok, "%s", raw)
	}
}

func TestDatabaseReaderParser(t *testing.T) {
	t.Parallel()

	res, ok := DatabaseReaderParser("vault", vault.MustMountPath("db")).Parse(MustParseURI("vault:/db/static-creds/role1"))
	require.True(t, ok)
	assert.Equal(t, Database{Mount: vault.MustMountPath("db"), Role: vault.StaticDatabaseRole("role1")}, res)
	assert.Equal(t, EngineDatabase, res.Engine())

	res, ok = DatabaseReaderParser("vault", vault.MustMountPath("db")).Parse(MustParseURI("vault:/db/creds/role1"))
	require.True(t, ok)
	assert.Equal(t, Database{Mount: vault.MustMountPath("db"), Role: vault.DynamicDatabaseRole("role1")}, res)
}

func TestDatabaseReaderParser_KindsAreExclusive(t *testing.T) {
	t.Parallel()

	p := DatabaseReaderParser("vault", vault.MustMountPath("database"))

	for _, raw := range []string{
		"vault:/database/static-creds/app",
		"vault:/database/creds/app",
		"vault:/database/creds/static-creds",
		"vault:/database/static-creds/creds",
	} {
		res, ok := p.Parse(MustParseURI(raw))
		require.True(t, ok, raw)

		db := res.(Database)
		wantStatic := strings.HasPrefix(raw, "vault:/database/static-creds/")
		if wantStatic {
			assert.Equal(t, vault.StaticRole, db.Role.Kind, raw)
		} else {
			assert.Equal(t, vault.DynamicRole, db.Role.Kind, raw)
		}
	}

	for _, raw := range []string{
		"vault:/database/roles/app",
		"vault:/database/creds",
		"vault:/database/creds/",
		"vault:/database/creds/a/b",
		"vault:/database/creds/..",
		"vault:/database/creds/.",
		"vault:/database/static-creds/..",
		"vault:/database/static-creds",
		"vault:/databases/creds/app",
	} {
		_, ok := p.Parse(MustParseURI(raw))
		assert.False(t, ok, raw)
	}
}

func TestCustomParser(t *testing.T) {
	t.Parallel()

	p := CustomParser(func(u URI) (Custom, bool) {
		if u.Scheme != "literal" {
			return Custom{}, false
		}
		return CustomData([]byte(u.Path[1:])), true
	})

	res, ok := p.Parse(MustParseURI("literal:/hello"))
	require.True(t, ok)
	assert.Equal(t, EngineCustom, res.Engine())

	b, err := res.(Custom).Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	_, ok = p.Parse(MustParseURI("vault:/hello"))
	assert.False(t, ok)
}

func TestCustomFetch(t *testing.T) {
	t.Parallel()

	calls := 0
	c := CustomFetch(func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("fetched"), nil
	})
	assert.Equal(t, 0, calls, "fetch is deferred")

	b, err := c.Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fetched", string(b))
	assert.Equal(t, 1, calls)
}

func TestParsersIgnoreOtherSchemes(t *testing.T) {
	t.Parallel()

	m := vault.MustMountPath("secret")
	u := MustParseURI("prod:/secret/app")

	_, ok := KeyValueReaderParser("vault", m).Parse(u)
	assert.False(t, ok)

	_, ok = KeyValueReaderParser("PROD", m).Parse(u)
	assert.True(t, ok)
}
