package fakes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/dsvault/pkg/vaultapi"
)

// Operation names used by CallCount.
const (
	OpAppRoleLogin            = "AppRoleLogin"
	OpUnwrap                  = "Unwrap"
	OpReadKV                  = "ReadKV"
	OpWriteKV                 = "WriteKV"
	OpReadDatabaseCredentials = "ReadDatabaseCredentials"
	OpReadAppRoleRoleID       = "ReadAppRoleRoleID"
	OpGenerateAppRoleSecretID = "GenerateAppRoleSecretID"
)

// FakeBackend is an in-memory Vault implementing vaultapi.Backend.
//
// It keeps KV v2 versions, database credentials, AppRole roles and
// single-use wrapping tokens. Requests carrying an unknown token get an
// undocumented 403, like a real server. Every method increments a per-operation
// call counter before doing anything else.
type FakeBackend struct {
	mu sync.Mutex

	tokens   map[string]bool
	kv       map[string][]map[string]interface{} // mount/key -> versions
	dbCreds  map[string]map[string]interface{}   // mount/kind/role -> data
	roles    map[string]string                   // mount/role -> role ID
	secretID map[string]map[string]bool          // role ID -> secret IDs
	wrapped  map[string]*vaultapi.Response       // wrapping token -> response

	failOn    map[string]error
	outcomeOn map[string]outcomeOverride
	delay     time.Duration
	callCount map[string]int
	seq       int
	now       func() time.Time
}

type outcomeOverride struct {
	kind   vaultapi.OutcomeKind
	status int
	errors []string
	body   []byte
}

// NewFakeBackend creates an empty fake server.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		tokens:    make(map[string]bool),
		kv:        make(map[string][]map[string]interface{}),
		dbCreds:   make(map[string]map[string]interface{}),
		roles:     make(map[string]string),
		secretID:  make(map[string]map[string]bool),
		wrapped:   make(map[string]*vaultapi.Response),
		failOn:    make(map[string]error),
		outcomeOn: make(map[string]outcomeOverride),
		callCount: make(map[string]int),
		now:       func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

// WithToken registers a token the fake accepts.
func (f *FakeBackend) WithToken(token string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = true
	return f
}

// WithKV stores a new version of mount/key.
func (f *FakeBackend) WithKV(mount, key string, data map[string]interface{}) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := mount + "/" + key
	f.kv[path] = append(f.kv[path], copyMap(data))
	return f
}

// WithDatabaseCredentials stores credentials for a static or dynamic role.
func (f *FakeBackend) WithDatabaseCredentials(mount, role string, static bool, data map[string]interface{}) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dbCreds[dbKey(mount, role, static)] = copyMap(data)
	return f
}

// WithAppRole registers an AppRole role with its role ID.
func (f *FakeBackend) WithAppRole(mount, role, roleID string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[mount+"/"+role] = roleID
	if f.secretID[roleID] == nil {
		f.secretID[roleID] = make(map[string]bool)
	}
	return f
}

// WithSecretID registers a valid secret ID for roleID.
func (f *FakeBackend) WithSecretID(roleID, secretID string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.secretID[roleID] == nil {
		f.secretID[roleID] = make(map[string]bool)
	}
	f.secretID[roleID][secretID] = true
	return f
}

// WithWrappedData registers a wrapping token whose payload is data.
func (f *FakeBackend) WithWrappedData(wrappingToken string, data map[string]interface{}) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wrapped[wrappingToken] = &vaultapi.Response{Data: copyMap(data)}
	return f
}

// WithError makes operation fail with a transport error.
func (f *FakeBackend) WithError(operation string, err error) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[operation] = err
	return f
}

// WithBadRequest makes operation return a 400 outcome.
func (f *FakeBackend) WithBadRequest(operation string, errs ...string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomeOn[operation] = outcomeOverride{kind: vaultapi.OutcomeBadRequest, errors: errs}
	return f
}

// WithUndocumented makes operation return an undocumented outcome.
func (f *FakeBackend) WithUndocumented(operation string, status int, body string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomeOn[operation] = outcomeOverride{kind: vaultapi.OutcomeUndocumented, status: status, body: []byte(body)}
	return f
}

// WithOutcomeKind makes operation return an outcome of an arbitrary kind.
func (f *FakeBackend) WithOutcomeKind(operation string, kind vaultapi.OutcomeKind) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomeOn[operation] = outcomeOverride{kind: kind}
	return f
}

// WithDelay adds artificial latency to every call.
func (f *FakeBackend) WithDelay(d time.Duration) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// CallCount returns how many times operation was called.
func (f *FakeBackend) CallCount(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount[operation]
}

// TotalCalls returns the number of calls across all operations.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.callCount {
		total += n
	}
	return total
}

// HasToken reports whether token is currently accepted.
func (f *FakeBackend) HasToken(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[token]
}

// RevokeToken stops accepting token.
func (f *FakeBackend) RevokeToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
}

// AppRoleLogin implements vaultapi.Backend.
func (f *FakeBackend) AppRoleLogin(ctx context.Context, mount, roleID, secretID string) (vaultapi.Outcome[*vaultapi.Auth], error) {
	if out, done, err := begin[*vaultapi.Auth](ctx, f, OpAppRoleLogin); done {
		return out, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.secretID[roleID][secretID] {
		return vaultapi.BadRequestOutcome[*vaultapi.Auth]([]string{"invalid role or secret ID"}), nil
	}

	token := f.nextID("s.login")
	f.tokens[token] = true
	return vaultapi.OK(&vaultapi.Auth{
		ClientToken:   token,
		Accessor:      f.nextID("accessor"),
		Policies:      []string{"default"},
		Metadata:      map[string]string{"role_name": mount},
		LeaseDuration: 3600,
		Renewable:     true,
	}), nil
}

// Unwrap implements vaultapi.Backend.
func (f *FakeBackend) Unwrap(ctx context.Context, wrappingToken string) (vaultapi.Outcome[*vaultapi.Response], error) {
	if out, done, err := begin[*vaultapi.Response](ctx, f, OpUnwrap); done {
		return out, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	resp, ok := f.wrapped[wrappingToken]
	if !ok {
		return vaultapi.BadRequestOutcome[*vaultapi.Response]([]string{"wrapping token is not valid or does not exist"}), nil
	}
	delete(f.wrapped, wrappingToken)
	return vaultapi.OK(resp), nil
}

// ReadKV implements vaultapi.Backend.
func (f *FakeBackend) ReadKV(ctx context.Context, token, mount, key string, version *int) (vaultapi.Outcome[map[string]interface{}], error) {
	if out, done, err := begin[map[string]interface{}](ctx, f, OpReadKV); done {
		return out, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.tokens[token] {
		return forbidden[map[string]interface{}](), nil
	}

	versions := f.kv[mount+"/"+key]
	n := len(versions)
	if version != nil && *version > 0 {
		n = *version
	}
	if n == 0 || n > len(versions) {
		return vaultapi.Undocumented[map[string]interface{}](404, []byte(`{"errors":[]}`)), nil
	}

	return vaultapi.OK(map[string]interface{}{
		"data":     copyMap(versions[n-1]),
		"metadata": f.metadata(n),
	}), nil
}

// WriteKV implements vaultapi.Backend.
func (f *FakeBackend) WriteKV(ctx context.Context, token, mount, key string, data map[string]interface{}) (vaultapi.Outcome[map[string]interface{}], error) {
	if out, done, err := begin[map[string]interface{}](ctx, f, OpWriteKV); done {
		return out, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.tokens[token] {
		return forbidden[map[string]interface{}](), nil
	}

	path := mount + "/" + key
	f.kv[path] = append(f.kv[path], copyMap(data))
	return vaultapi.OK(f.metadata(len(f.kv[path]))), nil
}

// ReadDatabaseCredentials implements vaultapi.Backend.
func (f *FakeBackend) ReadDatabaseCredentials(ctx context.Context, token, mount, role string, static bool) (vaultapi.Outcome[*vaultapi.Response], error) {
	if out, done, err := begin[*vaultapi.Response](ctx, f, OpReadDatabaseCredentials); done {
		return out, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.tokens[token] {
		return forbidden[*vaultapi.Response](), nil
	}

	data, ok := f.dbCreds[dbKey(mount, role, static)]
	if !ok {
		return vaultapi.BadRequestOutcome[*vaultapi.Response]([]string{fmt.Sprintf("unknown role: %s", role)}), nil
	}

	resp := &vaultapi.Response{Data: copyMap(data)}
	if !static {
		resp.LeaseID = fmt.Sprintf("%s/creds/%s/%s", mount, role, f.nextID("lease"))
		resp.LeaseDuration = 3600
		resp.Renewable = true
	}
	return vaultapi.OK(resp), nil
}

// ReadAppRoleRoleID implements vaultapi.Backend.
func (f *FakeBackend) ReadAppRoleRoleID(ctx context.Context, token, mount, role string) (vaultapi.Outcome[map[string]interface{}], error) {
	if out, done, err := begin[map[string]interface{}](ctx, f, OpReadAppRoleRoleID); done {
		return out, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.tokens[token] {
		return forbidden[map[string]interface{}](), nil
	}

	roleID, ok := f.roles[mount+"/"+role]
	if !ok {
		return vaultapi.Undocumented[map[string]interface{}](404, nil), nil
	}
	return vaultapi.OK(map[string]interface{}{"role_id": roleID}), nil
}

// GenerateAppRoleSecretID implements vaultapi.Backend.
func (f *FakeBackend) GenerateAppRoleSecretID(ctx context.Context, token, mount, role string, wrapTTL time.Duration) (vaultapi.Outcome[*vaultapi.Response], error) {
	if out, done, err := begin[*vaultapi.Response](ctx, f, OpGenerateAppRoleSecretID); done {
		return out, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.tokens[token] {
		return forbidden[*vaultapi.Response](), nil
	}

	roleID, ok := f.roles[mount+"/"+role]
	if !ok {
		return vaultapi.BadRequestOutcome[*vaultapi.Response]([]string{fmt.Sprintf("role %q does not exist", role)}), nil
	}

	secretID := f.nextID("secret-id")
	f.secretID[roleID][secretID] = true

	data := map[string]interface{}{
		"secret_id":          secretID,
		"secret_id_accessor": f.nextID("secret-id-accessor"),
		"secret_id_ttl":      json.Number("0"),
		"secret_id_num_uses": json.Number("0"),
	}

	if wrapTTL <= 0 {
		return vaultapi.OK(&vaultapi.Response{Data: data}), nil
	}

	wrappingToken := f.nextID("s.wrap")
	f.wrapped[wrappingToken] = &vaultapi.Response{Data: data}
	return vaultapi.OK(&vaultapi.Response{
		WrapInfo: &vaultapi.WrapInfo{
			Token:        wrappingToken,
			Accessor:     f.nextID("wrap-accessor"),
			TTL:          int(wrapTTL / time.Second),
			CreationTime: f.now(),
			CreationPath: fmt.Sprintf("auth/%s/role/%s/secret-id", mount, role),
		},
	}), nil
}

// begin counts the call, applies the configured delay and any forced result.
func begin[T any](ctx context.Context, f *FakeBackend, operation string) (vaultapi.Outcome[T], bool, error) {
	f.mu.Lock()
	f.callCount[operation]++
	delay := f.delay
	failErr := f.failOn[operation]
	override, overridden := f.outcomeOn[operation]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return vaultapi.Outcome[T]{}, true, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return vaultapi.Outcome[T]{}, true, err
	}
	if failErr != nil {
		return vaultapi.Outcome[T]{}, true, failErr
	}
	if overridden {
		return vaultapi.Outcome[T]{
			Kind:       override.kind,
			Errors:     override.errors,
			StatusCode: override.status,
			Body:       override.body,
		}, true, nil
	}
	return vaultapi.Outcome[T]{}, false, nil
}

func forbidden[T any]() vaultapi.Outcome[T] {
	return vaultapi.Undocumented[T](403, []byte(`{"errors":["permission denied"]}`))
}

func (f *FakeBackend) metadata(version int) map[string]interface{} {
	return map[string]interface{}{
		"version":       version,
		"created_time":  f.now().Format(time.RFC3339Nano),
		"deletion_time": "",
		"destroyed":     false,
	}
}

// nextID must be called with f.mu held.
func (f *FakeBackend) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func dbKey(mount, role string, static bool) string {
	kind := "creds"
	if static {
		kind = "static-creds"
	}
	return mount + "/" + kind + "/" + role
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
