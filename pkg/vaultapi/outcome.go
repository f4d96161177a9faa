// Package vaultapi is the wire layer between dsvault and a Vault-compatible server.
//
// Every endpoint is exposed as one method on Backend. A method either fails with a
// transport error (the request never produced an HTTP response) or returns an Outcome,
// which is one of exactly three shapes:
//
//   - OutcomeOK: the documented success payload
//   - OutcomeBadRequest: a 400 response with Vault's error strings
//   - OutcomeUndocumented: any other status, with the raw response body
//
// Callers are expected to switch over Outcome.Kind exhaustively. The pkg/vault client
// does this and turns the last two shapes into typed server errors.
//
// HTTPBackend implements Backend on top of github.com/hashicorp/vault/api with retries
// disabled. It never keeps a session token of its own; each call receives the bearer
// credential it should use.
package vaultapi

// OutcomeKind identifies which of the three endpoint outcomes a response is.
type OutcomeKind int

const (
	// OutcomeOK carries a decoded success payload.
	OutcomeOK OutcomeKind = iota + 1
	// OutcomeBadRequest carries the server's error strings from a 400 response.
	OutcomeBadRequest
	// OutcomeUndocumented carries the status code and raw body of any other response.
	OutcomeUndocumented
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeBadRequest:
		return "bad_request"
	case OutcomeUndocumented:
		return "undocumented"
	default:
		return "unknown"
	}
}

// Outcome is the closed result set of a single endpoint call.
type Outcome[T any] struct {
	Kind OutcomeKind

	// Payload is set for OutcomeOK.
	Payload T

	// Errors is set for OutcomeBadRequest.
	Errors []string

	// StatusCode and Body are set for OutcomeUndocumented.
	StatusCode int
	Body       []byte
}

// OK builds a success outcome.
func OK[T any](payload T) Outcome[T] {
	return Outcome[T]{Kind: OutcomeOK, Payload: payload}
}

// BadRequestOutcome builds a 400 outcome.
func BadRequestOutcome[T any](errs []string) Outcome[T] {
	return Outcome[T]{Kind: OutcomeBadRequest, Errors: errs, StatusCode: 400}
}

// Undocumented builds an outcome for any status the endpoint does not document.
func Undocumented[T any](status int, body []byte) Outcome[T] {
	return Outcome[T]{Kind: OutcomeUndocumented, StatusCode: status, Body: body}
}
