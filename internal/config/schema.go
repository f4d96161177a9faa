package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	dserrors "github.com/systmms/dsvault/internal/errors"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// validateSchema validates a decoded YAML document against the embedded schema
func validateSchema(doc interface{}) error {
	jsonData, err := json.Marshal(normalize(doc))
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return dserrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(errorMessages, "\n  - "),
			Suggestion: "Fix the fields listed above",
		}
	}

	return nil
}

// normalize turns YAML maps with non-string keys into JSON-compatible maps
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
