// Package client is the Go client for the task-board API.  Every call goes
// through a Pipeline that attaches the session's access token and renews
// it at most once per expiry through a shared Coordinator.
package client

import "sync"

// Subject is the logged-in user as reported by the server.
type Subject struct {
	ID          string
	Email       string
	DisplayName string
}

type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Session is a snapshot of the store.  Subject and Credentials are either
// both set or both nil.
type Session struct {
	Subject     *Subject
	Credentials *Credentials
}

// SessionStore holds the current session in memory.  Each client owns its
// own store; there is no process-wide instance.
type SessionStore struct {
	mu      sync.RWMutex
	subject *Subject
	creds   *Credentials
}

func NewSessionStore() *SessionStore { return &SessionStore{} }

// Read returns a copy that callers may keep.
func (s *SessionStore) Read() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.subject == nil {
		return Session{}
	}
	subject := *s.subject
	creds := *s.creds
	return Session{Subject: &subject, Credentials: &creds}
}

// SetAuth replaces subject and both tokens in one step.
func (s *SessionStore) SetAuth(subject Subject, accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = &subject
	s.creds = &Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
}

// Logout clears subject and tokens in one step.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = nil
	s.creds = nil
}

func (s *SessionStore) accessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.AccessToken
}

func (s *SessionStore) refreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.RefreshToken
}
