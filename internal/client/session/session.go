// Package session holds the signed-in user's identity for the running client.
package session

import "sync"

// Session is safe for concurrent use; the sync engine reads IsAdmin from a
// background goroutine.
type Session struct {
	mu       sync.RWMutex
	username string
	token    string
	admin    bool
}

func New() *Session {
	return &Session{}
}

func (s *Session) Set(username, token string, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username, s.token, s.admin = username, token, admin
}

func (s *Session) Clear() {
	s.Set("", "", false)
}

func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username != ""
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAdmin reports whether the current user is an administrator. Sync is
// disabled for administrators.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}
