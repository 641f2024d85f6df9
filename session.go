package bookhive

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTokenKey is the storage key of the session credential
const DefaultTokenKey = "authToken"

// Session owns the bearer credential shared by every request of a Client.
// It is initialized by Begin (login) and torn down by End (logout or expiry).
type Session struct {
	mu     sync.RWMutex
	store  TokenStore
	key    string
	token  string
	loaded bool
	began  time.Time
	now    func() time.Time
}

// SessionOption customizes a Session
type SessionOption func(*Session)

// WithTokenKey overrides the storage key
func WithTokenKey(key string) SessionOption {
	return func(s *Session) {
		if key = strings.TrimSpace(key); key != "" {
			s.key = key
		}
	}
}

// WithSessionClock injects the clock used to stamp Begin
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession creates a session persisted in store. A nil store keeps the
// credential in memory only.
func NewSession(store TokenStore, opts ...SessionOption) *Session {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	s := &Session{
		store: store,
		key:   DefaultTokenKey,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Begin stores token as the active credential
func (s *Session) Begin(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrValidation("token is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, s.key, token); err != nil {
		return err
	}

	s.token = token
	s.loaded = true
	s.began = s.now()
	return nil
}

// End clears the active credential
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.loaded = true
	s.began = time.Time{}
	return s.store.Delete(ctx, s.key)
}

// Token returns the active credential, reading the store the first time.
// An empty string means there is no session.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.loaded {
		token := s.token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.token, nil
	}

	token, err := s.store.Get(ctx, s.key)
	if err != nil {
		return "", err
	}

	s.token = token
	s.loaded = true
	return token, nil
}

// Reload drops the cached token so the next Token call reads the store
func (s *Session) Reload() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// Active reports whether a credential is present
func (s *Session) Active(ctx context.Context) bool {
	token, err := s.Token(ctx)
	return err == nil && token != ""
}

// Identity decodes the active credential for display
func (s *Session) Identity(ctx context.Context) (Identity, bool) {
	token, err := s.Token(ctx)
	if err != nil {
		return Identity{}, false
	}
	return DecodeIdentity(token)
}

// BeganAt returns when Begin last ran in this process
func (s *Session) BeganAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.began
}

// Key returns the storage key
func (s *Session) Key() string {
	return s.key
}

// MemoryTokenStore keeps credentials in process memory
type MemoryTokenStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryTokenStore returns an empty store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{values: map[string]string{}}
}

// Get returns an empty string for missing keys
func (m *MemoryTokenStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *MemoryTokenStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryTokenStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
