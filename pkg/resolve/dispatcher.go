// Package resolve dispatches resource URIs to secret engine calls.
//
// A Dispatcher holds an ordered list of resource.Parser values. For each URI it
// asks every parser in registration order and sends the first match to the
// corresponding engine call on a shared *vault.Client. Registration order is
// part of the contract: if two parsers accept the same URI, the one registered
// first wins. A URI no parser accepts fails with vault.ErrUnsupportedURL.
//
//	d := resolve.New(client,
//		resolve.WithKeyValueDataMounts(vault.MustMountPath("secret")),
//		resolve.WithKeyValueMounts(vault.MustMountPath("secret")),
//		resolve.WithDatabaseMounts(vault.MustMountPath("database")),
//	)
//	body, err := d.Read(ctx, "vault:/secret/app/db?version=2")
//
// Every read uses whichever session token the client holds when the read
// starts, so the client must be authenticated before the first read.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	dserrors "github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/internal/logging"
	"github.com/systmms/dsvault/internal/metrics"
	"github.com/systmms/dsvault/pkg/resource"
	"github.com/systmms/dsvault/pkg/vault"
)

// DefaultConcurrency bounds ReadAll.
const DefaultConcurrency = 10

// Dispatcher routes resource URIs to engine calls. It is safe for concurrent use
// once constructed.
type Dispatcher struct {
	client      *vault.Client
	scheme      string
	parsers     []resource.Parser
	timeout     time.Duration
	concurrency int
	logger      *logging.Logger
	metrics     *metrics.Recorder

	pending []func(d *Dispatcher) resource.Parser
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithScheme sets the URI scheme the built-in parsers match. Defaults to "vault".
func WithScheme(scheme string) Option {
	return func(d *Dispatcher) {
		if scheme != "" {
			d.scheme = scheme
		}
	}
}

// WithKeyValueMounts registers a KeyValueReaderParser per mount.
func WithKeyValueMounts(mounts ...vault.MountPath) Option {
	return func(d *Dispatcher) {
		for _, m := range mounts {
			m := m
			d.pending = append(d.pending, func(d *Dispatcher) resource.Parser {
				return resource.KeyValueReaderParser(d.scheme, m)
			})
		}
	}
}

// WithKeyValueDataMounts registers a KeyValueDataPathParser per mount.
func WithKeyValueDataMounts(mounts ...vault.MountPath) Option {
	return func(d *Dispatcher) {
		for _, m := range mounts {
			m := m
			d.pending = append(d.pending, func(d *Dispatcher) resource.Parser {
				return resource.KeyValueDataPathParser(d.scheme, m)
			})
		}
	}
}

// WithDatabaseMounts registers a DatabaseReaderParser per mount.
func WithDatabaseMounts(mounts ...vault.MountPath) Option {
	return func(d *Dispatcher) {
		for _, m := range mounts {
			m := m
			d.pending = append(d.pending, func(d *Dispatcher) resource.Parser {
				return resource.DatabaseReaderParser(d.scheme, m)
			})
		}
	}
}

// WithUnwrapParser registers the sys/wrapping/unwrap parser.
func WithUnwrapParser() Option {
	return func(d *Dispatcher) {
		d.pending = append(d.pending, func(d *Dispatcher) resource.Parser {
			return UnwrapParser(d.scheme, d.client)
		})
	}
}

// WithParser registers an arbitrary parser at this position.
func WithParser(p resource.Parser) Option {
	return func(d *Dispatcher) {
		d.pending = append(d.pending, func(*Dispatcher) resource.Parser { return p })
	}
}

// WithTimeout bounds each read. Zero or negative disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithConcurrency bounds the number of reads ReadAll runs at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// New creates a dispatcher. Parsers are registered in option order.
func New(client *vault.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:      client,
		scheme:      resource.DefaultScheme,
		timeout:     DefaultTimeoutMs * time.Millisecond,
		concurrency: DefaultConcurrency,
		logger:      logging.Discard(),
		metrics:     metrics.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, build := range d.pending {
		d.parsers = append(d.parsers, build(d))
	}
	d.pending = nil
	return d
}

// Parsers returns the registered parsers in evaluation order.
func (d *Dispatcher) Parsers() []resource.Parser {
	out := make([]resource.Parser, len(d.parsers))
	copy(out, d.parsers)
	return out
}

// Parse returns the first parser match for raw without reading anything.
func (d *Dispatcher) Parse(raw string) (resource.Result, error) {
	u, err := resource.ParseURI(raw)
	if err != nil {
		return nil, err
	}
	for _, p := range d.parsers {
		if res, ok := p.Parse(u); ok {
			return res, nil
		}
	}
	return nil, &vault.ClientError{
		Kind:    vault.UnsupportedURL,
		Message: fmt.Sprintf("no parser accepts %q (%d registered)", raw, len(d.parsers)),
	}
}

// Read resolves raw and returns its bytes.
func (d *Dispatcher) Read(ctx context.Context, raw string) ([]byte, error) {
	res, err := d.Parse(raw)
	if err != nil {
		return nil, err
	}
	return d.ReadResult(ctx, res)
}

// ReadResult performs the engine call for an already parsed result.
//
//   - KeyValue: versioned KV read, JSON of the secret data
//   - Database: credential read, JSON of the credential data
//   - Custom: the custom payload verbatim
func (d *Dispatcher) ReadResult(ctx context.Context, res resource.Result) ([]byte, error) {
	engine := "unknown"
	if res != nil {
		engine = string(res.Engine())
	}

	ctx, cancel := withReadTimeout(ctx, d.timeout)
	defer cancel()

	var (
		body []byte
		err  error
	)
	switch r := res.(type) {
	case resource.KeyValue:
		body, err = d.readKeyValue(ctx, r)
	case resource.Database:
		body, err = d.readDatabase(ctx, r)
	case resource.Custom:
		body, err = r.Bytes(ctx)
	default:
		err = &vault.ClientError{Kind: vault.UnsupportedURL, Message: fmt.Sprintf("unsupported result type %T", res)}
	}

	err = timeoutError(err, engine, d.timeout)
	d.metrics.RecordResourceRead(engine, err)
	if err != nil {
		d.logger.Debug("%s read failed: %v", engine, err)
	}
	return body, err
}

func (d *Dispatcher) readKeyValue(ctx context.Context, r resource.KeyValue) ([]byte, error) {
	secret, err := d.client.ReadKV(ctx, r.Mount, r.Key, r.Version)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", r.Mount, r.Key, err)
	}
	body, err := json.Marshal(secret.Data)
	if err != nil {
		return nil, &vault.ClientError{Kind: vault.DecodingFailed, Message: "encode secret data", Err: err}
	}
	return body, nil
}

func (d *Dispatcher) readDatabase(ctx context.Context, r resource.Database) ([]byte, error) {
	creds, err := d.client.ReadDatabaseCredentials(ctx, r.Mount, r.Role)
	if err != nil {
		return nil, fmt.Errorf("read %s credentials %s/%s: %w", r.Role.Kind, r.Mount, r.Role.Name, err)
	}
	body, err := json.Marshal(creds.Data)
	if err != nil {
		return nil, &vault.ClientError{Kind: vault.DecodingFailed, Message: "encode credentials", Err: err}
	}
	return body, nil
}

// ReadAll resolves every URI in raws with bounded concurrency. Duplicates are
// read once. No ordering between reads is guaranteed. On failure the map
// holds the reads that succeeded.
func (d *Dispatcher) ReadAll(ctx context.Context, raws []string) (map[string][]byte, error) {
	unique := make([]string, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		if !seen[raw] {
			seen[raw] = true
			unique = append(unique, raw)
		}
	}

	result := make(map[string][]byte, len(unique))
	resultMutex := &sync.Mutex{}

	var wg sync.WaitGroup
	errorChan := make(chan error, len(unique))
	semaphore := make(chan struct{}, d.concurrency)

	for _, raw := range unique {
		wg.Add(1)
		go func(raw string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				errorChan <- fmt.Errorf("%s: %w", raw, ctx.Err())
				return
			}
			defer func() { <-semaphore }()

			body, err := d.Read(ctx, raw)
			if err != nil {
				errorChan <- fmt.Errorf("%s: %w", raw, err)
				return
			}

			resultMutex.Lock()
			result[raw] = body
			resultMutex.Unlock()
		}(raw)
	}

	wg.Wait()
	close(errorChan)

	var errs []error
	for err := range errorChan {
		errs = append(errs, err)
	}

	switch len(errs) {
	case 0:
		return result, nil
	case 1:
		return result, errs[0]
	default:
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		details := make([]string, len(errs))
		for i, err := range errs {
			details[i] = err.Error()
		}
		return result, dserrors.UserError{
			Message:    fmt.Sprintf("Failed to resolve %d references", len(errs)),
			Details:    strings.Join(details, "; "),
			Suggestion: "Fix the errors above and try again. Use 'dsvault read <uri>' to check a single reference",
			Err:        errors.Join(errs...),
		}
	}
}
