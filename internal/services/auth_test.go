package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"usersvc/internal/auth"
	"usersvc/internal/db"
	"usersvc/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	svc      *AuthService
	database *db.DB
	tokens   *auth.JWTService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	tokens := auth.NewJWTService(testSecret, 15*time.Minute, 24*time.Hour)
	return &fixture{
		svc:      NewAuthService(database, auth.NewPasswordHasher(bcrypt.MinCost), tokens),
		database: database,
		tokens:   tokens,
	}
}

func (f *fixture) register(t *testing.T, username, email, password string) *models.AuthBundle {
	t.Helper()

	bundle, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return bundle
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	bundle := f.register(t, "alice", "Alice@Example.com", "password123")

	assert.Equal(t, "alice", bundle.User.Username)
	assert.Equal(t, "Alice@Example.com", bundle.User.Email)
	assert.Equal(t, "alice", bundle.User.DisplayName)
	assert.Equal(t, models.StatusOnline, bundle.User.Status)
	assert.False(t, bundle.User.IsVerified)
	assert.Equal(t, "Bearer", bundle.TokenType)
	assert.NotZero(t, bundle.User.ID)
	assert.False(t, bundle.User.CreatedAt.IsZero())

	subject, err := f.tokens.SubjectOf(bundle.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, bundle.User.ID, subject)

	_, err = f.tokens.ParseRefresh(bundle.RefreshToken)
	require.NoError(t, err)

	stored, err := f.database.Users().FindByID(context.Background(), bundle.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))
}

func TestRegisterUsesDisplayName(t *testing.T) {
	f := newFixture(t)
	name := "  Alice Liddell "

	bundle, err := f.svc.Register(context.Background(), RegisterInput{
		Username:    "alice",
		Email:       "alice@example.com",
		Password:    "password123",
		DisplayName: &name,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", bundle.User.DisplayName)

	blank := "   "
	bundle, err = f.svc.Register(context.Background(), RegisterInput{
		Username:    "bob",
		Email:       "bob@example.com",
		Password:    "password123",
		DisplayName: &blank,
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", bundle.User.DisplayName)
}

func TestRegisterDuplicateIdentity(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{name: "same_username", username: "alice", email: "other@example.com"},
		{name: "same_email", username: "bob", email: "alice@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), RegisterInput{
				Username: tt.username,
				Email:    tt.email,
				Password: "password123",
			})
			assert.ErrorIs(t, err, ErrDuplicateIdentity)
		})
	}

	exists, err := f.database.Users().ExistsByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, exists, "failed registration must not leave a record")
}

func TestRegisterConcurrentSameUsername(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), RegisterInput{
				Username: "racer",
				Email:    "racer" + string(rune('a'+i)) + "@example.com",
				Password: "password123",
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
	}
	assert.Equal(t, 1, successes)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "alice@example.com", "password123")

	for _, identifier := range []string{"alice", "alice@example.com"} {
		t.Run(identifier, func(t *testing.T) {
			bundle, err := f.svc.Login(context.Background(), LoginInput{
				Identifier: identifier,
				Password:   "password123",
			})
			require.NoError(t, err)
			assert.Equal(t, registered.User.ID, bundle.User.ID)
			assert.Equal(t, models.StatusOnline, bundle.User.Status)
			assert.True(t, f.tokens.IsValid(bundle.AccessToken))
		})
	}

	stored, err := f.database.Users().FindByID(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastSeenAt)
}

func TestLoginSetsStatusOnline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "alice", "alice@example.com", "password123")

	_, err := f.database.ExecContext(ctx, `UPDATE users SET status = 'OFFLINE' WHERE id = ?`, registered.User.ID)
	require.NoError(t, err)

	bundle, err := f.svc.Login(ctx, LoginInput{Identifier: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, bundle.User.Status)

	stored, err := f.database.Users().FindByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, stored.Status)
}

func TestLoginInvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	_, wrongPassword := f.svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "nope-nope"})
	_, unknownUser := f.svc.Login(context.Background(), LoginInput{Identifier: "mallory", Password: "password123"})

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestLoginDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "alice@example.com", "password123")

	require.NoError(t, f.svc.Deactivate(context.Background(), registered.User.ID))

	_, err := f.svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "password123"})
	assert.ErrorIs(t, err, ErrAccountDisabled)

	_, err = f.svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "disabled state must not leak without the password")
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "alice@example.com", "password123")

	bundle, err := f.svc.Refresh(context.Background(), registered.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, bundle.User.ID)

	claims, err := f.tokens.ParseAccess(bundle.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	_, err = f.svc.Refresh(context.Background(), registered.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "access tokens cannot be redeemed")

	_, err = f.svc.Refresh(context.Background(), "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRefreshRejectsDeactivatedOrMissingUser(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "alice@example.com", "password123")

	require.NoError(t, f.svc.Deactivate(context.Background(), registered.User.ID))
	_, err := f.svc.Refresh(context.Background(), registered.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountDisabled)

	orphan, err := f.tokens.IssueRefresh(4242)
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), orphan)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "alice@example.com", "password123")

	view, err := f.svc.Me(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.Username)

	_, err = f.svc.Me(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, f.svc.Deactivate(context.Background(), registered.User.ID))
	_, err = f.svc.Me(context.Background(), registered.User.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, f.svc.Deactivate(context.Background(), 999), ErrUserNotFound)
}

func TestStoreFailureIsDistinct(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.database.Close())

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
	assert.False(t, errors.Is(err, ErrDuplicateIdentity))

	_, err = f.svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "password123"})
	assert.ErrorIs(t, err, ErrStore)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}
