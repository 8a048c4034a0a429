// Package auth implements the demo login: a fixed credential table checked
// against bcrypt hashes, with sessions persisted through a SessionStore.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

type SessionStore interface {
	InsertSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, token string) (domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type Credential struct {
	Username string
	Password string
	Role     domain.Role
}

// DefaultCredentials are the built-in demo accounts.
var DefaultCredentials = []Credential{
	{Username: "guest", Password: "guest123", Role: domain.RoleGuest},
	{Username: "expert", Password: "expert123", Role: domain.RoleExpert},
	{Username: "admin", Password: "admin123", Role: domain.RoleAdmin},
}

type account struct {
	hash []byte
	role domain.Role
}

type Service struct {
	store    SessionStore
	ttl      time.Duration
	now      func() time.Time
	accounts map[string]account
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithCredentials replaces the demo accounts.
func WithCredentials(creds []Credential) Option {
	return func(s *Service) {
		s.accounts = nil
		for _, c := range creds {
			s.add(c)
		}
	}
}

func NewService(store SessionStore, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	s := &Service{store: store, ttl: ttl, now: time.Now}
	for _, c := range DefaultCredentials {
		s.add(c)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) add(c Credential) {
	if s.accounts == nil {
		s.accounts = make(map[string]account)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.MinCost)
	if err != nil {
		log.Error().Err(err).Str("username", c.Username).Msg("failed to hash credential")
		return
	}
	s.accounts[strings.ToLower(c.Username)] = account{hash: hash, role: c.Role}
}

// Login checks the credential table and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (domain.Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	acct, ok := s.accounts[username]
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	now := s.now().UTC()
	sess := domain.Session{
		Token:     uuid.NewString(),
		Username:  username,
		Role:      acct.role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.InsertSession(ctx, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	log.Info().Str("username", username).Str("role", string(acct.role)).Msg("user logged in")
	return sess, nil
}

// Authenticate resolves a token to its user. Expired sessions are removed.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.User{}, err
	}
	if !s.now().Before(sess.ExpiresAt) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			log.Warn().Err(err).Msg("failed to delete expired session")
		}
		return domain.User{}, domain.ErrUnauthorized
	}
	return sess.User(), nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// Sweep deletes every expired session.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now().UTC())
}

// RequireManager returns ErrForbidden unless the user may manage resources.
func RequireManager(u domain.User) error {
	if !u.Role.CanManage() {
		return fmt.Errorf("%w: role %q", domain.ErrForbidden, u.Role)
	}
	return nil
}
