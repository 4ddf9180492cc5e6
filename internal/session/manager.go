// Package session is the storefront's authentication collaborator. It signs
// users in and out against the API, keeps the token and session in local
// storage, and announces every change on the event bus.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"storefront-client/internal/domain"
	"storefront-client/internal/eventbus"
	"storefront-client/pkg/storage"
)

var ErrNotLoggedIn = errors.New("not logged in")

// Authenticator is the part of the API client the manager calls.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.AuthResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error)
}

type persisted struct {
	Token string          `json:"token"`
	User  *domain.Session `json:"user,omitempty"`
}

type Manager struct {
	auth  Authenticator
	store storage.Store
	key   string
	bus   *eventbus.Bus
	log   zerolog.Logger

	mu      sync.RWMutex
	token   string
	session *domain.Session

	unsubscribe func()
}

// NewManager restores any persisted session and starts following storage
// changes made by other processes.
func NewManager(ctx context.Context, auth Authenticator, store storage.Store, key string, bus *eventbus.Bus, log zerolog.Logger) *Manager {
	m := &Manager{
		auth:  auth,
		store: store,
		key:   key,
		bus:   bus,
		log:   log.With().Str("component", "session").Logger(),
	}
	if _, err := m.Reload(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Ignoring unreadable persisted session")
	}
	m.unsubscribe = bus.Subscribe(domain.TopicStorageChange, m.onStorageChange)
	return m
}

// Current returns a copy of the signed-in session, or nil.
func (m *Manager) Current() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Token returns the bearer token, "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	resp, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return m.signIn(ctx, domain.SessionLogin, resp)
}

func (m *Manager) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Session, error) {
	resp, err := m.auth.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return m.signIn(ctx, domain.SessionRegister, resp)
}

func (m *Manager) signIn(ctx context.Context, kind string, resp *domain.AuthResponse) (*domain.Session, error) {
	session := resp.User
	if session == nil || session.UserID == "" {
		claimed, err := SessionFromToken(resp.Token)
		if err != nil {
			return nil, err
		}
		session = claimed
	}

	data, err := json.Marshal(persisted{Token: resp.Token, User: session})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.store.Set(ctx, m.key, data); err != nil {
		// The session still works for this process; other processes won't see it.
		m.log.Warn().Err(err).Msg("Failed to persist session")
	}

	m.mu.Lock()
	m.token = resp.Token
	s := *session
	m.session = &s
	m.mu.Unlock()

	m.log.Info().Str("user_id", session.UserID).Str("type", kind).Msg("Signed in")
	m.bus.Publish(ctx, domain.TopicSessionChange, domain.SessionChange{Type: kind, User: m.Current()})
	return m.Current(), nil
}

// Logout forgets the session locally. The server keeps no session state.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.session == nil && m.token == "" {
		m.mu.Unlock()
		return ErrNotLoggedIn
	}
	userID := ""
	if m.session != nil {
		userID = m.session.UserID
	}
	m.token = ""
	m.session = nil
	m.mu.Unlock()

	if err := m.store.Remove(ctx, m.key); err != nil {
		m.log.Warn().Err(err).Msg("Failed to remove persisted session")
	}
	m.log.Info().Str("user_id", userID).Msg("Signed out")
	m.bus.Publish(ctx, domain.TopicSessionChange, domain.SessionChange{Type: domain.SessionLogout})
	return nil
}

// Reload re-derives the session from storage and reports whether the signed-in
// user changed. It does not publish a session change.
func (m *Manager) Reload(ctx context.Context) (bool, error) {
	var p persisted
	data, err := m.store.Get(ctx, m.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("failed to read session: %w", err)
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			return false, fmt.Errorf("failed to decode session: %w", err)
		}
	}
	if p.Token != "" && (p.User == nil || p.User.UserID == "") {
		claimed, err := SessionFromToken(p.Token)
		if err != nil {
			return false, err
		}
		p.User = claimed
	}
	if p.Token == "" {
		p.User = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	before := ""
	if m.session != nil {
		before = m.session.UserID
	}
	m.token = p.Token
	m.session = p.User
	after := ""
	if p.User != nil {
		after = p.User.UserID
	}
	return before != after, nil
}

func (m *Manager) onStorageChange(ctx context.Context, payload any) error {
	change, ok := payload.(storage.Change)
	if !ok || change.Key != m.key {
		return nil
	}
	changed, err := m.Reload(ctx)
	if err != nil {
		return err
	}
	if changed {
		m.log.Info().Msg("Session changed in another window")
	}
	return nil
}

// Close stops following storage changes.
func (m *Manager) Close() {
	m.unsubscribe()
}

// SessionFromToken reads the session claims out of a JWT without verifying
// its signature. Verification is the API's job; the client only needs the
// claims for display.
func SessionFromToken(token string) (*domain.Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	name, _ := claims["name"].(string)
	return &domain.Session{
		UserID:      sub,
		DisplayName: name,
		Email:       email,
		Role:        role,
	}, nil
}
