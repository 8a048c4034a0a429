package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/database"
	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/repository"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newService(t *testing.T) (*Service, *clock) {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewService(repository.New(db), time.Hour, WithClock(c.now)), c
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	tests := []struct {
		user, pass string
		role       domain.Role
		ok         bool
	}{
		{"guest", "guest123", domain.RoleGuest, true},
		{"Expert", "expert123", domain.RoleExpert, true},
		{" ADMIN ", "admin123", domain.RoleAdmin, true},
		{"admin", "ADMIN123", "", false},
		{"nobody", "guest123", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		sess, err := s.Login(ctx, tt.user, tt.pass)
		if !tt.ok {
			assert.ErrorIs(t, err, domain.ErrInvalidCredentials, tt.user)
			continue
		}
		require.NoError(t, err, tt.user)
		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, tt.role, sess.Role)
		assert.Equal(t, time.Hour, sess.ExpiresAt.Sub(sess.CreatedAt))

		u, err := s.Authenticate(ctx, sess.Token)
		require.NoError(t, err)
		assert.Equal(t, tt.role, u.Role)
	}
}

func TestAuthenticateExpired(t *testing.T) {
	ctx := context.Background()
	s, c := newService(t)

	sess, err := s.Login(ctx, "expert", "expert123")
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Hour)
	_, err = s.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// the expired record is gone even if the clock goes back
	c.t = c.t.Add(-2 * time.Hour)
	_, err = s.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	sess, err := s.Login(ctx, "guest", "guest123")
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx, sess.Token))
	require.NoError(t, s.Logout(ctx, sess.Token))
	require.NoError(t, s.Logout(ctx, ""))

	_, err = s.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = s.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	s, c := newService(t)

	_, err := s.Login(ctx, "guest", "guest123")
	require.NoError(t, err)
	c.t = c.t.Add(30 * time.Minute)
	_, err = s.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	c.t = c.t.Add(45 * time.Minute)
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRequireManager(t *testing.T) {
	assert.ErrorIs(t, RequireManager(domain.User{Username: "guest", Role: domain.RoleGuest}), domain.ErrForbidden)
	assert.NoError(t, RequireManager(domain.User{Username: "expert", Role: domain.RoleExpert}))
	assert.NoError(t, RequireManager(domain.User{Username: "admin", Role: domain.RoleAdmin}))
}

func TestWithCredentials(t *testing.T) {
	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := NewService(repository.New(db), 0, WithCredentials([]Credential{{Username: "ops", Password: "pw", Role: domain.RoleAdmin}}))
	_, err = s.Login(context.Background(), "guest", "guest123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	sess, err := s.Login(context.Background(), "ops", "pw")
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, sess.ExpiresAt.Sub(sess.CreatedAt))
}
