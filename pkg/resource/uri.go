// Package resource turns resource URIs into engine-specific request descriptors.
//
// A resource URI has the form
//
//	<scheme>:/<mount>/<suffix>[?<query>]
//
// where the scheme defaults to "vault". Examples:
//
//	vault:/secret/app/db              KV v2 secret "app/db" on mount "secret", latest version
//	vault:/secret/app/db?version=3    the same secret at version 3
//	vault:/secret/data/app/db         the canonical KV v2 data path
//	vault:/database/static-creds/app  static database role "app"
//	vault:/database/creds/app         dynamic database role "app"
//
// Parsers are pure: they never perform I/O. A parser that does not recognise a
// URI reports no match, which is normal control flow. Deciding what to do when
// no parser matches belongs to the dispatcher in pkg/resolve.
package resource

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/systmms/dsvault/pkg/vault"
)

// DefaultScheme is assumed for URIs written without a scheme.
const DefaultScheme = "vault"

// URI is a parsed resource reference.
type URI struct {
	// Scheme is lower-cased, e.g. "vault".
	Scheme string
	// Path is the unescaped, slash-prefixed path, e.g. "/secret/app".
	Path string
	// Query holds the decoded query parameters such as version or token.
	Query url.Values
	// Raw is the original text.
	Raw string
}

// ParseURI parses raw. A missing scheme means DefaultScheme.
// "vault://secret/app" is accepted as a spelling of "vault:/secret/app".
func ParseURI(raw string) (URI, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return URI{}, unsupported(raw, "empty URI")
	}

	scheme := DefaultScheme
	rest := text
	if idx := strings.Index(text, ":"); idx > 0 && !strings.Contains(text[:idx], "/") {
		scheme = strings.ToLower(text[:idx])
		rest = text[idx+1:]
		if !validScheme(scheme) {
			return URI{}, unsupported(raw, "invalid scheme %q", scheme)
		}
	}

	var rawQuery string
	if idx := strings.Index(rest, "?"); idx >= 0 {
		rawQuery = rest[idx+1:]
		rest = rest[:idx]
	}

	if !strings.HasPrefix(rest, "/") {
		return URI{}, unsupported(raw, "path must start with /")
	}
	rest = "/" + strings.TrimLeft(rest, "/")

	path, err := url.PathUnescape(rest)
	if err != nil {
		return URI{}, unsupported(raw, "invalid path escape: %v", err)
	}
	if path == "/" {
		return URI{}, unsupported(raw, "path is empty")
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return URI{}, unsupported(raw, "invalid query parameters: %v", err)
	}

	return URI{Scheme: scheme, Path: path, Query: query, Raw: raw}, nil
}

// MustParseURI is like ParseURI but panics on error.
func MustParseURI(raw string) URI {
	u, err := ParseURI(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the canonical form scheme:/path?query.
func (u URI) String() string {
	s := u.Scheme + ":" + u.Path
	if len(u.Query) > 0 {
		s += "?" + u.Query.Encode()
	}
	return s
}

func validScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return s != ""
}

func unsupported(raw, format string, args ...interface{}) error {
	args = append([]interface{}{raw}, args...)
	return &vault.ClientError{
		Kind:    vault.UnsupportedURL,
		Message: fmt.Sprintf("%q: "+format, args...),
	}
}
