package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned by Bytes after Destroy.
var ErrDestroyed = errors.New("secure: value destroyed")

// Value is a secret encrypted at rest in memory.
type Value struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// Seal encrypts a copy of data into a new Value.
func Seal(data []byte) *Value {
	v := &Value{size: len(data)}
	// memguard rejects empty enclaves and wipes its input.
	if len(data) > 0 {
		buf := make([]byte, len(data))
		copy(buf, data)
		v.enclave = memguard.NewEnclave(buf)
	}
	return v
}

// Len reports the plaintext length.
func (v *Value) Len() int {
	return v.size
}

// Bytes decrypts the value and returns a copy of the plaintext.
func (v *Value) Bytes() ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.destroyed {
		return nil, ErrDestroyed
	}
	if v.enclave == nil {
		return []byte{}, nil
	}

	locked, err := v.enclave.Open()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	out := make([]byte, locked.Size())
	copy(out, locked.Bytes())
	return out, nil
}

// Destroy drops the enclave. It is idempotent.
func (v *Value) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.destroyed = true
	v.enclave = nil
}

// IsDestroyed reports whether Destroy has been called.
func (v *Value) IsDestroyed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.destroyed
}

// Purge wipes every memguard key and buffer. Call it once at exit.
func Purge() {
	memguard.Purge()
}
