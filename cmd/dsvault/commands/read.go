package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/systmms/dsvault/internal/config"
	dserrors "github.com/systmms/dsvault/internal/errors"
)

func NewReadCommand(cfg *config.Config) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "read <uri>...",
		Short: "Read one or more resource URIs",
		Long: `Resolve resource URIs against the configured mounts and print the result.

A single URI prints the raw payload. Several URIs are read concurrently and
printed as one JSON object keyed by URI.

Examples:
  # Latest version of a KV secret
  dsvault read vault:/secret/app

  # A pinned version, one field only
  dsvault read vault:/secret/app?version=2 --field apiKey

  # Dynamic database credentials
  dsvault read vault:/db/creds/readonly`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if field != "" && len(args) > 1 {
				return dserrors.UserError{
					Message:    "--field works with a single URI",
					Suggestion: "Run one 'dsvault read' per URI when extracting fields",
				}
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := context.Background()
			if err := s.login(ctx); err != nil {
				return err
			}
			d, err := s.dispatcher()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if len(args) == 1 {
				body, err := d.Read(ctx, args[0])
				if err != nil {
					return dserrors.EngineError("read", err)
				}
				if field != "" {
					v, err := extractField(body, field)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprint(out, v)
					return nil
				}
				_, _ = fmt.Fprintln(out, string(body))
				return nil
			}

			values, err := d.ReadAll(ctx, args)
			if err != nil {
				return dserrors.EngineError("read", err)
			}
			doc, err := json.MarshalIndent(asJSON(values), "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, string(doc))
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "Print only this top-level field of the payload")

	return cmd
}

// asJSON keeps JSON payloads as objects and wraps anything else as a string.
func asJSON(values map[string][]byte) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		if json.Valid(v) {
			out[k] = json.RawMessage(v)
		} else {
			out[k] = string(v)
		}
	}
	return out
}

func extractField(body []byte, name string) (string, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", dserrors.UserError{
			Message:    "Payload is not a JSON object",
			Suggestion: "Drop --field to print the raw value",
			Err:        err,
		}
	}

	v, ok := doc[name]
	if !ok {
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", dserrors.UserError{
			Message:    fmt.Sprintf("Field '%s' not found", name),
			Suggestion: fmt.Sprintf("Available fields: %v", keys),
		}
	}

	if str, ok := v.(string); ok {
		return str, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
