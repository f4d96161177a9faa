package resource

import (
	"context"

	"github.com/systmms/dsvault/pkg/vault"
)

// Engine names the kind of secret engine a Result is served by.
type Engine string

const (
	EngineKeyValue Engine = "keyValue"
	EngineDatabase Engine = "database"
	EngineCustom   Engine = "custom"
)

// Result is what a Parser extracts from a URI.
// It is implemented only by KeyValue, Database and Custom.
type Result interface {
	Engine() Engine
	isResult()
}

// KeyValue addresses a KV v2 secret. A nil Version means latest.
type KeyValue struct {
	Mount   vault.MountPath
	Key     string
	Version *int
}

func (KeyValue) Engine() Engine { return EngineKeyValue }
func (KeyValue) isResult()      {}

// Database addresses database credentials for a static or dynamic role.
type Database struct {
	Mount vault.MountPath
	Role  vault.DatabaseRole
}

func (Database) Engine() Engine { return EngineDatabase }
func (Database) isResult()      {}

// Custom is an opaque payload produced by a custom parser. It holds either
// bytes known at parse time or a fetch deferred to dispatch time, which keeps
// parsing free of I/O.
type Custom struct {
	data   []byte
	fetch  func(ctx context.Context) ([]byte, error)
	secret bool
}

// CustomData wraps bytes that are returned verbatim.
func CustomData(b []byte) Custom {
	return Custom{data: b}
}

// CustomFetch wraps a fetch run once per dispatch.
func CustomFetch(fn func(ctx context.Context) ([]byte, error)) Custom {
	return Custom{fetch: fn}
}

// AsSecret marks the payload as sensitive, so callers that cache it keep it
// sealed and redact it when printed.
func (c Custom) AsSecret() Custom {
	c.secret = true
	return c
}

// Secret reports whether the payload was marked with AsSecret.
func (c Custom) Secret() bool { return c.secret }

func (Custom) Engine() Engine { return EngineCustom }
func (Custom) isResult()      {}

// Bytes returns the payload, running the deferred fetch if there is one.
func (c Custom) Bytes(ctx context.Context) ([]byte, error) {
	if c.fetch != nil {
		return c.fetch(ctx)
	}
	return c.data, nil
}
