package vault

import "sync"

// TokenStore holds the active session token for one client.
// It is safe for concurrent use. Critical sections only swap a pointer.
type TokenStore struct {
	mu    sync.Mutex
	token *string
}

// NewTokenStore creates an empty store
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token and whether one is set
func (s *TokenStore) Get() (string, bool) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()

	if tok == nil {
		return "", false
	}
	return *tok, true
}

// Set replaces the current token. An empty token clears the store.
func (s *TokenStore) Set(token string) {
	var next *string
	if token != "" {
		next = &token
	}

	s.mu.Lock()
	s.token = next
	s.mu.Unlock()
}

// Clear removes the current token
func (s *TokenStore) Clear() {
	s.Set("")
}
