package vault

import (
	"strings"
	"unicode"
)

// MountPath is a validated, slash-normalised secret engine mount path such as
// "secret" or "team/kv". The zero value is not valid.
type MountPath struct {
	path string
}

// ParseMountPath validates p. Leading and trailing slashes are ignored.
// Every segment must be non-empty, contain no whitespace and not start with ".".
func ParseMountPath(p string) (MountPath, error) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return MountPath{}, newClientError(InvalidMountPath, "mount path %q is empty", p)
	}

	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" {
			return MountPath{}, newClientError(InvalidMountPath, "mount path %q has an empty segment", p)
		}
		if strings.HasPrefix(seg, ".") {
			return MountPath{}, newClientError(InvalidMountPath, "mount path %q has a dot segment %q", p, seg)
		}
		if strings.IndexFunc(seg, unicode.IsSpace) >= 0 {
			return MountPath{}, newClientError(InvalidMountPath, "mount path %q contains whitespace", p)
		}
	}

	return MountPath{path: trimmed}, nil
}

// MustMountPath is like ParseMountPath but panics on error. Intended for constants.
func MustMountPath(p string) MountPath {
	m, err := ParseMountPath(p)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns the normalised path without leading or trailing slashes
func (m MountPath) String() string {
	return m.path
}

// IsZero reports whether m was never validated
func (m MountPath) IsZero() bool {
	return m.path == ""
}

// TrimPrefix reports whether path lives under m and returns the remainder.
// Matching is case-sensitive and respects segment boundaries, so "secret"
// does not match "secrets/app". path may carry a leading slash.
func (m MountPath) TrimPrefix(path string) (string, bool) {
	if m.path == "" {
		return "", false
	}
	path = strings.TrimPrefix(path, "/")
	if path == m.path {
		return "", true
	}
	if !strings.HasPrefix(path, m.path+"/") {
		return "", false
	}
	return path[len(m.path)+1:], true
}
