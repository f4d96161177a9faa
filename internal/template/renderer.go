// Package template renders configuration documents that embed Vault resource
// references:
//
//	DATABASE_URL=postgres://app:{{ read "vault:/secret/app/db" | field "password" }}@db/app
//
// Every literal read reference is collected before execution and resolved in
// one batch through a Reader, so the document is executed against values
// that are already in memory.
package template

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"text/template"

	"github.com/systmms/dsvault/internal/logging"
)

// Reader resolves many resource URIs at once. *resolve.Dispatcher satisfies it.
type Reader interface {
	ReadAll(ctx context.Context, uris []string) (map[string][]byte, error)
}

var (
	// action matches a template action, delimiters included.
	action = regexp.MustCompile(`(?s)\{\{.*?\}\}`)
	// readRef matches read "uri" and read `uri`.
	readRef = regexp.MustCompile("\\bread\\s+(?:\"((?:[^\"\\\\]|\\\\.)*)\"|`([^`]*)`)")
)

// Renderer renders documents with resolved references.
type Renderer struct {
	reader Reader
	logger *logging.Logger
}

// New creates a renderer reading through reader.
func New(reader Reader, logger *logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Renderer{reader: reader, logger: logger}
}

// References returns the distinct literal read references in src, sorted.
func References(src string) ([]string, error) {
	seen := make(map[string]bool)
	var refs []string
	var matches [][]string
	for _, a := range action.FindAllString(src, -1) {
		matches = append(matches, readRef.FindAllStringSubmatch(a, -1)...)
	}
	for _, m := range matches {
		ref := m[2]
		if m[1] != "" || m[2] == "" {
			unquoted, err := strconv.Unquote(`"` + m[1] + `"`)
			if err != nil {
				return nil, fmt.Errorf("invalid read reference %q: %w", m[0], err)
			}
			ref = unquoted
		}
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs, nil
}

// Render resolves every reference in src and executes it.
func (r *Renderer) Render(ctx context.Context, name, src string) ([]byte, error) {
	refs, err := References(src)
	if err != nil {
		return nil, err
	}

	values := map[string][]byte{}
	if len(refs) > 0 {
		r.logger.Debug("resolving %d references in %s", len(refs), name)
		values, err = r.reader.ReadAll(ctx, refs)
		if err != nil {
			return nil, err
		}
	}

	tmpl, err := template.New(name).Option("missingkey=error").Funcs(r.funcs(values)).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) funcs(values map[string][]byte) template.FuncMap {
	return template.FuncMap{
		"read": func(uri string) (string, error) {
			v, ok := values[uri]
			if !ok {
				return "", fmt.Errorf("reference %q was not resolved; read only accepts string literals", uri)
			}
			return string(v), nil
		},
		"field":     r.field,
		"b64enc":    r.base64Encode,
		"b64dec":    r.base64Decode,
		"indent":    r.indent,
		"sha256sum": r.sha256Hash,
		"toJSON": func(v interface{}) (string, error) {
			b, err := r.marshalJSON(v)
			return string(b), err
		},
	}
}

// WriteFile writes rendered output with restrictive permissions, replacing
// the target atomically.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dsvault-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return os.Rename(tmpName, path)
}
