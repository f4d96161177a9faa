package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	dserrors "github.com/systmms/dsvault/internal/errors"
)

// DefaultTimeoutMs bounds a single resource read unless configured otherwise.
const DefaultTimeoutMs = 30000

// withReadTimeout creates a context with timeout for one resource read
func withReadTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutError wraps a deadline error with helpful context. Other errors pass through.
func timeoutError(err error, engine string, timeout time.Duration) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return dserrors.UserError{
		Message:    "Vault read timed out",
		Details:    fmt.Sprintf("%s read exceeded %dms timeout", engine, timeout.Milliseconds()),
		Suggestion: timeoutSuggestion(timeout),
		Err:        err,
	}
}

func timeoutSuggestion(timeout time.Duration) string {
	if timeout < 5*time.Second {
		return "Vault API can be slow. Try increasing server.timeout_ms to 10000"
	}
	return "Check Vault connectivity and authentication. Verify VAULT_ADDR"
}
