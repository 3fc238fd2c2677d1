// Package session owns the bearer credential lifecycle: decode of identity
// claims, expiry checking, persistence and teardown. The backend is the
// authority on the token; no signature verification happens client-side.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatx/chatx-go/internal/logger"
	"github.com/chatx/chatx-go/internal/model"
)

var (
	ErrBadCredential = errors.New("credential decode failed")
	ErrBadSubject    = errors.New("credential subject is not a positive integer")
	ErrExpired       = errors.New("credential already expired")
)

// Manager holds the current session. A failed SetCredential leaves the prior
// session untouched; Clear is idempotent.
type Manager struct {
	mu    sync.RWMutex
	store CredentialStore

	credential string
	identity   *model.Identity
	expiresAt  time.Time // zero when the token carries no exp
}

// NewManager builds a Manager over the given persistence backend.
func NewManager(store CredentialStore) *Manager {
	if store == nil {
		store = NewMemory()
	}
	return &Manager{store: store}
}

// decodeClaims parses the token without verifying the signature and extracts
// the subject, optional username and optional expiry.
func decodeClaims(raw string) (*model.Identity, time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrBadCredential, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, time.Time{}, ErrBadSubject
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return nil, time.Time{}, ErrBadSubject
	}

	identity := &model.Identity{UserID: userID}
	if username, ok := claims["username"].(string); ok {
		identity.Username = username
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return identity, expiresAt, nil
}

// SetCredential validates raw and activates the session. The credential is
// persisted on success so a restart can hydrate it.
func (m *Manager) SetCredential(raw string) error {
	identity, expiresAt, err := decodeClaims(raw)
	if err != nil {
		return err
	}
	if !expiresAt.IsZero() && !expiresAt.After(time.Now()) {
		return ErrExpired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = raw
	m.identity = identity
	m.expiresAt = expiresAt
	if err := m.store.Save(raw); err != nil {
		logger.Errorf("session: persist credential: %v", err)
	}
	return nil
}

// Hydrate loads a persisted credential at startup. An expired or malformed
// stored credential is erased without activating a session.
func (m *Manager) Hydrate() bool {
	raw, err := m.store.Load()
	if err != nil {
		logger.Errorf("session: load credential: %v", err)
		return false
	}
	if raw == "" {
		return false
	}
	if err := m.SetCredential(raw); err != nil {
		logger.Infof("session: dropping stored credential: %v", err)
		if err := m.store.Erase(); err != nil {
			logger.Errorf("session: erase credential: %v", err)
		}
		return false
	}
	return true
}

// Clear deactivates the session and erases the persisted credential.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = ""
	m.identity = nil
	m.expiresAt = time.Time{}
	if err := m.store.Erase(); err != nil {
		logger.Errorf("session: erase credential: %v", err)
	}
}

// Identity returns a copy of the current identity, or nil without a session.
func (m *Manager) Identity() *model.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	cp := *m.identity
	return &cp
}

// Credential returns the raw bearer credential of an active session.
func (m *Manager) Credential() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return "", false
	}
	return m.credential, true
}

// ExpiresAt returns the known expiry. ok is false when the token has none.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil || m.expiresAt.IsZero() {
		return time.Time{}, false
	}
	return m.expiresAt, true
}

// Active reports whether a validated credential is held.
func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity != nil
}

// Expired reports whether a known expiry has passed. Sessions without an exp
// claim never self-expire; the backend signals invalidation with a 401.
func (m *Manager) Expired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity != nil && !m.expiresAt.IsZero() && !m.expiresAt.After(time.Now())
}
