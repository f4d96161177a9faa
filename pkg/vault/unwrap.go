package vault

import (
	"context"
	"time"

	"github.com/systmms/dsvault/pkg/vaultapi"
)

// Wrapped is a response-wrapping token whose payload decodes to T.
// The payload is not available until the token is unwrapped, and a token
// can be unwrapped only once.
type Wrapped[T any] struct {
	Token        string
	Accessor     string
	TTL          time.Duration
	CreationTime time.Time
	CreationPath string
}

func wrappedFrom[T any](info *vaultapi.WrapInfo) Wrapped[T] {
	return Wrapped[T]{
		Token:        info.Token,
		Accessor:     info.Accessor,
		TTL:          time.Duration(info.TTL) * time.Second,
		CreationTime: info.CreationTime,
		CreationPath: info.CreationPath,
	}
}

// Unwrap exchanges wrappingToken for its payload. The request is authenticated
// by the wrapping token itself, never by the session token.
//
// Unwrapping the active session token would consume the session, so that case
// fails with InvalidArgument before anything is sent.
//
// The payload is the wrapped response's data block, or its auth block when the
// wrapped response was a login.
func Unwrap[T any](ctx context.Context, c *Client, wrappingToken string) (T, error) {
	var out T

	if wrappingToken == "" {
		return out, newClientError(InvalidArgument, "wrapping token is empty")
	}
	if current, ok := c.tokens.Get(); ok && current == wrappingToken {
		return out, newClientError(InvalidArgument, "refusing to unwrap the active session token")
	}

	resp, err := call(ctx, c, "unwrap", func(ctx context.Context) (vaultapi.Outcome[*vaultapi.Response], error) {
		return c.backend.Unwrap(ctx, wrappingToken)
	})
	if err == nil {
		err = decodeUnwrapped(resp, &out)
	}
	c.metrics.RecordUnwrap(err)
	return out, err
}

// UnwrapResponse is Unwrap for a token obtained from a wrapped call.
func UnwrapResponse[T any](ctx context.Context, c *Client, w Wrapped[T]) (T, error) {
	return Unwrap[T](ctx, c, w.Token)
}

func decodeUnwrapped(resp *vaultapi.Response, out interface{}) error {
	switch {
	case resp == nil:
		return newClientError(DecodingFailed, "unwrap response is empty")
	case resp.Data != nil:
		return decodeInto(resp.Data, out)
	case resp.Auth != nil:
		return decodeInto(resp.Auth, out)
	default:
		return newClientError(DecodingFailed, "unwrap response has neither data nor auth")
	}
}
