package auth

import (
	"os"
	"sync"
)

// TokenSource supplies the current access token for REST calls and the socket
// handshake. Token issuance and refresh live in the surrounding auth service;
// this package only reads whatever is current.
type TokenSource interface {
	AccessToken() string
}

// StaticToken holds a token set once, typically at session start.
type StaticToken struct {
	mu    sync.RWMutex
	token string
}

func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token}
}

func (s *StaticToken) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the token, e.g. after the auth collaborator refreshes it.
func (s *StaticToken) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// EnvToken reads the token from an environment variable on every call.
type EnvToken struct {
	Key string
}

func (e EnvToken) AccessToken() string {
	return os.Getenv(e.Key)
}
