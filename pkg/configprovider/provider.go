// Package configprovider exposes resource reads as a (key, context) -> value
// lookup for configuration loaders.
//
// Every distinct key and context pair is fetched once through a
// resolve.Dispatcher and then served from memory. There is no refresh and no
// expiry. Values read from secret engines (KV and database) are kept sealed
// with internal/secure, as are custom values marked secret. Other custom values
// are stored as is.
package configprovider

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/systmms/dsvault/internal/logging"
	"github.com/systmms/dsvault/internal/metrics"
	"github.com/systmms/dsvault/internal/secure"
	"github.com/systmms/dsvault/pkg/resource"
	"github.com/systmms/dsvault/pkg/resolve"
	"github.com/systmms/dsvault/pkg/vault"
)

// ValueType is the representation a caller asks for.
type ValueType int

const (
	String ValueType = iota + 1
	Bytes
	Bool
	Int
	Float
	StringList
)

func (t ValueType) String() string {
	switch t {
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case StringList:
		return "stringList"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// Context disambiguates keys that share components.
type Context struct {
	// Engine, when set, must equal the engine the URI resolves to.
	Engine resource.Engine
	Mount  string
	// URL is absolute (under the server address) or relative to it.
	URL string
}

// Key identifies one configuration value.
type Key struct {
	Components []string
	Context    Context
}

func (k Key) cacheKey() string {
	var b strings.Builder
	for _, c := range k.Components {
		b.WriteString(url.PathEscape(c))
		b.WriteByte('/')
	}
	b.WriteByte('|')
	b.WriteString(string(k.Context.Engine))
	b.WriteByte('|')
	b.WriteString(k.Context.Mount)
	b.WriteByte('|')
	b.WriteString(k.Context.URL)
	return b.String()
}

// Value is a resolved configuration value.
type Value struct {
	Content []byte
	Secret  bool
}

// String returns the content, redacted when secret.
func (v Value) String() string {
	if v.Secret {
		return logging.Secret(string(v.Content)).String()
	}
	return string(v.Content)
}

type entry struct {
	sealed *secure.Value
	plain  []byte
	secret bool
}

func (e *entry) value() (Value, error) {
	if !e.secret {
		out := make([]byte, len(e.plain))
		copy(out, e.plain)
		return Value{Content: out}, nil
	}
	b, err := e.sealed.Bytes()
	if err != nil {
		return Value{}, err
	}
	return Value{Content: b, Secret: true}, nil
}

// Provider resolves and caches configuration values.
type Provider struct {
	dispatcher *resolve.Dispatcher
	scheme     string
	base       *url.URL
	logger     *logging.Logger
	metrics    *metrics.Recorder

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*entry
}

// Option configures a Provider.
type Option func(*Provider) error

// WithServerAddress sets the base absolute context URLs must live under.
func WithServerAddress(address string) Option {
	return func(p *Provider) error {
		u, err := url.Parse(strings.TrimRight(address, "/"))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &vault.ClientError{Kind: vault.InvalidArgument, Message: fmt.Sprintf("invalid server address %q", address), Err: err}
		}
		p.base = u
		return nil
	}
}

// WithScheme sets the scheme used to build resource URIs. Defaults to "vault".
func WithScheme(scheme string) Option {
	return func(p *Provider) error {
		if scheme != "" {
			p.scheme = scheme
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Provider) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Provider) error {
		if m != nil {
			p.metrics = m
		}
		return nil
	}
}

// New creates a provider reading through d.
func New(d *resolve.Dispatcher, opts ...Option) (*Provider, error) {
	p := &Provider{
		dispatcher: d,
		scheme:     resource.DefaultScheme,
		logger:     logging.Discard(),
		metrics:    metrics.New(),
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Value returns the value for key, fetching it on first use.
// Only String and Bytes are supported; engine payloads are opaque JSON.
func (p *Provider) Value(ctx context.Context, key Key, typ ValueType) (Value, error) {
	if typ != String && typ != Bytes {
		return Value{}, &vault.ClientError{
			Kind:    vault.UnsupportedReturnType,
			Message: fmt.Sprintf("%s values are not supported, request string or bytes", typ),
		}
	}

	ck := key.cacheKey()
	if e := p.lookup(ck); e != nil {
		p.metrics.RecordCacheLookup(true)
		return e.value()
	}
	p.metrics.RecordCacheLookup(false)

	raw, err := p.URI(key)
	if err != nil {
		return Value{}, err
	}

	// The shared fetch must outlive any single caller; the dispatcher read
	// timeout still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(ck, func() (interface{}, error) {
		if e := p.lookup(ck); e != nil {
			return e, nil
		}
		return p.fetch(fetchCtx, ck, key, raw)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return Value{}, r.Err
		}
		if r.Shared {
			p.logger.Debug("coalesced lookup for %s", raw)
		}
		return r.Val.(*entry).value()
	case <-ctx.Done():
		return Value{}, ctx.Err()
	}
}

func (p *Provider) lookup(ck string) *entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries[ck]
}

func (p *Provider) fetch(ctx context.Context, ck string, key Key, raw string) (*entry, error) {
	res, err := p.dispatcher.Parse(raw)
	if err != nil {
		return nil, err
	}
	if want := key.Context.Engine; want != "" && want != res.Engine() {
		return nil, &vault.ClientError{
			Kind:    vault.UnsupportedURL,
			Message: fmt.Sprintf("%s resolves to engine %s, context says %s", raw, res.Engine(), want),
		}
	}

	body, err := p.dispatcher.ReadResult(ctx, res)
	if err != nil {
		return nil, err
	}

	e := &entry{secret: isSecret(res)}
	if e.secret {
		e.sealed = secure.Seal(body)
	} else {
		e.plain = body
	}

	p.mu.Lock()
	p.entries[ck] = e
	p.mu.Unlock()

	p.logger.Debug("cached %s (secret=%t)", raw, e.secret)
	return e, nil
}

func isSecret(res resource.Result) bool {
	c, ok := res.(resource.Custom)
	return !ok || c.Secret()
}

// URI builds the resource URI a key resolves to.
//
// With a context URL the URL path is used, minus the server base path and the
// /v1/ API prefix. Otherwise the URI is the context mount followed by the key
// components.
func (p *Provider) URI(key Key) (string, error) {
	if key.Context.URL != "" {
		return p.uriFromURL(key.Context.URL)
	}

	mount, err := vault.ParseMountPath(key.Context.Mount)
	if err != nil {
		return "", err
	}
	if len(key.Components) == 0 {
		return "", &vault.ClientError{Kind: vault.InvalidArgument, Message: "key has no components"}
	}
	parts := make([]string, len(key.Components))
	for i, c := range key.Components {
		c = strings.Trim(c, "/")
		if c == "" {
			return "", &vault.ClientError{Kind: vault.InvalidArgument, Message: fmt.Sprintf("empty key component at %d", i)}
		}
		segs := strings.Split(c, "/")
		for j, s := range segs {
			segs[j] = url.PathEscape(s)
		}
		parts[i] = strings.Join(segs, "/")
	}
	return p.scheme + ":/" + mount.String() + "/" + strings.Join(parts, "/"), nil
}

func (p *Provider) uriFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", &vault.ClientError{Kind: vault.UnsupportedURL, Message: fmt.Sprintf("invalid context url %q", raw), Err: err}
	}

	rel := u.EscapedPath()
	if u.IsAbs() || u.Host != "" {
		if p.base == nil {
			return "", &vault.ClientError{Kind: vault.UnsupportedURL, Message: fmt.Sprintf("absolute url %q needs a server address", raw)}
		}
		if !strings.EqualFold(u.Scheme, p.base.Scheme) || !strings.EqualFold(u.Host, p.base.Host) {
			return "", &vault.ClientError{Kind: vault.UnsupportedURL, Message: fmt.Sprintf("%q is not under %s", raw, p.base)}
		}
		basePath := strings.TrimRight(p.base.Path, "/")
		if basePath != "" {
			if rel != basePath && !strings.HasPrefix(rel, basePath+"/") {
				return "", &vault.ClientError{Kind: vault.UnsupportedURL, Message: fmt.Sprintf("%q is not under %s", raw, p.base)}
			}
			rel = strings.TrimPrefix(rel, basePath)
		}
	}

	rel = "/" + strings.TrimLeft(rel, "/")
	if rel == "/v1" || strings.HasPrefix(rel, "/v1/") {
		rel = strings.TrimPrefix(rel, "/v1")
	}
	rel = path.Clean(rel)
	if rel == "/" || rel == "." {
		return "", &vault.ClientError{Kind: vault.UnsupportedURL, Message: fmt.Sprintf("context url %q has no resource path", raw)}
	}

	out := p.scheme + ":" + rel
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, nil
}

// Len reports the number of cached values.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Close destroys every sealed value and empties the cache.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for k, e := range p.entries {
		if e.sealed != nil {
			e.sealed.Destroy()
		}
		delete(p.entries, k)
	}
}
