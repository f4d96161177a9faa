package template

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// field extracts a top-level field from a JSON object. Strings are returned
// unquoted, everything else as JSON.
func (r *Renderer) field(name, doc string) (string, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &obj); err != nil {
		return "", fmt.Errorf("field %q: value is not a JSON object", name)
	}
	v, ok := obj[name]
	if !ok {
		return "", fmt.Errorf("field %q not found", name)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// marshalJSON marshals an interface to JSON with proper formatting
func (r *Renderer) marshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// base64Encode encodes a string to base64
func (r *Renderer) base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// base64Decode decodes a base64 string
func (r *Renderer) base64Decode(s string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// indent prefixes each line, leaving a trailing empty line alone
func (r *Renderer) indent(prefix, s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" || i < len(lines)-1 {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// sha256Hash returns the SHA256 hash of a string
func (r *Renderer) sha256Hash(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}
