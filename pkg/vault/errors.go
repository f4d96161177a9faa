package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ClientErrorKind classifies local misuse detected before or after a server call.
type ClientErrorKind int

const (
	// NotAuthenticated means an engine call was attempted with no session token.
	NotAuthenticated ClientErrorKind = iota + 1
	// InvalidArgument means a caller-supplied value was rejected, e.g. unwrapping
	// with the active session token.
	InvalidArgument
	// InvalidMountPath means a mount path failed validation.
	InvalidMountPath
	// UnsupportedReturnType means a value was requested in a type secret engines cannot produce.
	UnsupportedReturnType
	// UnsupportedURL means no registered parser accepted a resource URI.
	UnsupportedURL
	// DecodingFailed means a server payload did not have the expected shape.
	DecodingFailed
)

func (k ClientErrorKind) String() string {
	switch k {
	case NotAuthenticated:
		return "not authenticated"
	case InvalidArgument:
		return "invalid argument"
	case InvalidMountPath:
		return "invalid mount path"
	case UnsupportedReturnType:
		return "unsupported return type"
	case UnsupportedURL:
		return "unsupported url"
	case DecodingFailed:
		return "decoding failed"
	default:
		return fmt.Sprintf("client error %d", int(k))
	}
}

// ClientError reports misuse of the client or an undecodable response.
type ClientError struct {
	Kind    ClientErrorKind
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is matches any ClientError of the same kind, so the Err* sentinels work with errors.Is.
func (e *ClientError) Is(target error) bool {
	var t *ClientError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// ServerErrorKind classifies errors reported by the server.
type ServerErrorKind int

const (
	// BadRequest is a 400 response.
	BadRequest ServerErrorKind = iota + 1
	// Forbidden is a 403 response.
	Forbidden
	// InternalServerError is a 500 response.
	InternalServerError
	// OperationFailed is any other undocumented status.
	OperationFailed
)

func (k ServerErrorKind) String() string {
	switch k {
	case BadRequest:
		return "bad request"
	case Forbidden:
		return "forbidden"
	case InternalServerError:
		return "internal server error"
	case OperationFailed:
		return "operation failed"
	default:
		return fmt.Sprintf("server error %d", int(k))
	}
}

// ServerError carries the status code and error strings reported by Vault.
type ServerError struct {
	Kind       ServerErrorKind
	StatusCode int
	Errors     []string
}

func (e *ServerError) Error() string {
	msg := fmt.Sprintf("vault %s (status %d)", e.Kind, e.StatusCode)
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return msg
}

// Is matches any ServerError of the same kind.
func (e *ServerError) Is(target error) bool {
	var t *ServerError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks. They match on kind only.
var (
	ErrNotAuthenticated      = &ClientError{Kind: NotAuthenticated}
	ErrInvalidArgument       = &ClientError{Kind: InvalidArgument}
	ErrInvalidMountPath      = &ClientError{Kind: InvalidMountPath}
	ErrUnsupportedReturnType = &ClientError{Kind: UnsupportedReturnType}
	ErrUnsupportedURL        = &ClientError{Kind: UnsupportedURL}
	ErrDecodingFailed        = &ClientError{Kind: DecodingFailed}

	ErrBadRequest          = &ServerError{Kind: BadRequest}
	ErrForbidden           = &ServerError{Kind: Forbidden}
	ErrInternalServerError = &ServerError{Kind: InternalServerError}
	ErrOperationFailed     = &ServerError{Kind: OperationFailed}
)

func newClientError(kind ClientErrorKind, format string, args ...interface{}) *ClientError {
	return &ClientError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// serverErrorFromStatus maps an undocumented response onto the server taxonomy.
// The body is decoded on a best-effort basis as Vault's {"errors": [...]} envelope.
func serverErrorFromStatus(status int, body []byte) *ServerError {
	var kind ServerErrorKind
	switch status {
	case http.StatusBadRequest:
		kind = BadRequest
	case http.StatusForbidden:
		kind = Forbidden
	case http.StatusInternalServerError:
		kind = InternalServerError
	default:
		kind = OperationFailed
	}
	return &ServerError{Kind: kind, StatusCode: status, Errors: decodeErrorBody(body)}
}

func decodeErrorBody(body []byte) []string {
	if len(body) == 0 {
		return nil
	}
	var envelope struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Errors != nil {
		return envelope.Errors
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return []string{text}
	}
	return nil
}
