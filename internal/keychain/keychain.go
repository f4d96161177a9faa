// Package keychain reads and stores Vault credentials in the OS keychain
// (macOS Keychain, Linux Secret Service, Windows Credential Manager).
package keychain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when no item exists for a service and account.
var ErrNotFound = errors.New("keychain item not found")

// Item identifies a keychain entry.
type Item struct {
	Service string
	Account string
}

func (i Item) String() string {
	return i.Service + "/" + i.Account
}

// ParseItem parses a reference of the form service/account.
func ParseItem(ref string) (Item, error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Item{}, fmt.Errorf("invalid keychain reference %q: expected service/account", ref)
	}
	return Item{Service: parts[0], Account: parts[1]}, nil
}

// Error wraps a failed keychain operation
type Error struct {
	Op   string
	Item Item
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("keychain %s %s: %v", e.Op, e.Item, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Get returns the secret stored for item.
func Get(item Item) (string, error) {
	secret, err := keyring.Get(item.Service, item.Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", &Error{Op: "get", Item: item, Err: ErrNotFound}
		}
		return "", &Error{Op: "get", Item: item, Err: err}
	}
	return secret, nil
}

// Set stores secret for item, replacing any previous value.
func Set(item Item, secret string) error {
	if err := keyring.Set(item.Service, item.Account, secret); err != nil {
		return &Error{Op: "set", Item: item, Err: err}
	}
	return nil
}

// Delete removes item. Deleting a missing item is not an error.
func Delete(item Item) error {
	err := keyring.Delete(item.Service, item.Account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return &Error{Op: "delete", Item: item, Err: err}
	}
	return nil
}
