package resource

import (
	"strconv"
	"strings"

	"github.com/systmms/dsvault/pkg/vault"
)

// Parser recognises one URI shape. Parse must be pure and report false for
// anything it does not recognise.
type Parser interface {
	Parse(u URI) (Result, bool)
}

// KeyValueReaderParser matches scheme:/<mount>/<key>[?version=<int>].
func KeyValueReaderParser(scheme string, mount vault.MountPath) Parser {
	return &kvReaderParser{scheme: normScheme(scheme), mount: mount}
}

type kvReaderParser struct {
	scheme string
	mount  vault.MountPath
}

func (p *kvReaderParser) Parse(u URI) (Result, bool) {
	rest, ok := matchMount(u, p.scheme, p.mount)
	if !ok || !validKey(rest) {
		return nil, false
	}
	version, ok := parseVersion(u)
	if !ok {
		return nil, false
	}
	return KeyValue{Mount: p.mount, Key: rest, Version: version}, true
}

// KeyValueDataPathParser matches the canonical KV v2 form
// scheme:/<mount>/data/<key>[?version=<int>]. Without the literal data
// segment it never matches.
func KeyValueDataPathParser(scheme string, mount vault.MountPath) Parser {
	return &kvDataPathParser{scheme: normScheme(scheme), mount: mount}
}

type kvDataPathParser struct {
	scheme string
	mount  vault.MountPath
}

func (p *kvDataPathParser) Parse(u URI) (Result, bool) {
	rest, ok := matchMount(u, p.scheme, p.mount)
	if !ok {
		return nil, false
	}
	key, ok := strings.CutPrefix(rest, "data/")
	if !ok || !validKey(key) {
		return nil, false
	}
	version, ok := parseVersion(u)
	if !ok {
		return nil, false
	}
	return KeyValue{Mount: p.mount, Key: key, Version: version}, true
}

// DatabaseReaderParser matches scheme:/<mount>/static-creds/<role> and
// scheme:/<mount>/creds/<role>.
func DatabaseReaderParser(scheme string, mount vault.MountPath) Parser {
	return &databaseParser{scheme: normScheme(scheme), mount: mount}
}

type databaseParser struct {
	scheme string
	mount  vault.MountPath
}

func (p *databaseParser) Parse(u URI) (Result, bool) {
	rest, ok := matchMount(u, p.scheme, p.mount)
	if !ok {
		return nil, false
	}

	kind, role, ok := strings.Cut(rest, "/")
	if !ok || !validSegment(role) || strings.Contains(role, "/") {
		return nil, false
	}

	switch kind {
	case "static-creds":
		return Database{Mount: p.mount, Role: vault.StaticDatabaseRole(role)}, true
	case "creds":
		return Database{Mount: p.mount, Role: vault.DynamicDatabaseRole(role)}, true
	default:
		return nil, false
	}
}

// CustomParser adapts fn into a Parser. fn sees the whole URI, including ones
// for other schemes.
func CustomParser(fn func(u URI) (Custom, bool)) Parser {
	return customParser(fn)
}

type customParser func(u URI) (Custom, bool)

func (p customParser) Parse(u URI) (Result, bool) {
	c, ok := p(u)
	if !ok {
		return nil, false
	}
	return c, true
}

func normScheme(s string) string {
	if s == "" {
		return DefaultScheme
	}
	return strings.ToLower(s)
}

func matchMount(u URI, scheme string, mount vault.MountPath) (string, bool) {
	if u.Scheme != scheme {
		return "", false
	}
	return mount.TrimPrefix(u.Path)
}

// validKey rejects empty keys and keys with empty or dot segments.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if !validSegment(seg) {
			return false
		}
	}
	return true
}

func validSegment(seg string) bool {
	return seg != "" && seg != "." && seg != ".."
}

// parseVersion returns nil when version is absent. A present but malformed
// or negative version is no match rather than an error.
func parseVersion(u URI) (*int, bool) {
	values, present := u.Query["version"]
	if !present {
		return nil, true
	}
	if len(values) != 1 {
		return nil, false
	}
	v, err := strconv.Atoi(values[0])
	if err != nil || v < 0 {
		return nil, false
	}
	return &v, true
}
