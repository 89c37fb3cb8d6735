// Package services holds the account business rules: registration, login,
// token refresh and deactivation.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"usersvc/internal/auth"
	"usersvc/internal/db"
	"usersvc/internal/models"
)

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName *string
}

type LoginInput struct {
	Identifier string
	Password   string
}

type AuthService struct {
	database *db.DB
	hasher   *auth.PasswordHasher
	tokens   *auth.JWTService
	now      func() time.Time

	// compared against when no account matches, so misses cost as much as hits
	decoyHash string
}

func NewAuthService(database *db.DB, hasher *auth.PasswordHasher, tokens *auth.JWTService) *AuthService {
	decoy, err := hasher.Hash("decoy-password-for-unknown-identifiers")
	if err != nil {
		slog.Warn("could not prepare decoy password hash", "component", "auth", "error", err)
	}

	return &AuthService{
		database:  database,
		hasher:    hasher,
		tokens:    tokens,
		now:       time.Now,
		decoyHash: decoy,
	}
}

// Register creates an ONLINE, active, unverified account and issues its first
// token pair. The uniqueness checks and the insert share one transaction, and
// the store's unique constraints catch any registration that slips past them.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.AuthBundle, error) {
	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	displayName := in.Username
	if in.DisplayName != nil && strings.TrimSpace(*in.DisplayName) != "" {
		displayName = strings.TrimSpace(*in.DisplayName)
	}

	var user *models.User
	err = s.database.WithTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		users := db.NewUserRepository(tx)

		taken, err := users.ExistsByUsername(ctx, in.Username)
		if err != nil {
			return storeError(err)
		}
		if taken {
			return ErrDuplicateIdentity
		}

		taken, err = users.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return storeError(err)
		}
		if taken {
			return ErrDuplicateIdentity
		}

		user, err = users.Create(ctx, &models.User{
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: passwordHash,
			DisplayName:  displayName,
			Status:       models.StatusOnline,
			IsActive:     true,
			IsVerified:   false,
		})
		if errors.Is(err, db.ErrDuplicate) {
			return ErrDuplicateIdentity
		}
		if err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}

	slog.Info("user registered", "component", "auth", "user_id", user.ID)

	return s.bundle(user)
}

// Login authenticates by username or email. Unknown identifiers and wrong
// passwords both yield ErrInvalidCredentials and cost one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.AuthBundle, error) {
	found, err := s.database.Users().FindByUsernameOrEmail(ctx, in.Identifier)
	if errors.Is(err, db.ErrNotFound) {
		s.hasher.Verify(in.Password, s.decoyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeError(err)
	}

	if !s.hasher.Verify(in.Password, found.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !found.IsActive {
		return nil, ErrAccountDisabled
	}

	var user *models.User
	err = s.database.WithTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		users := db.NewUserRepository(tx)

		current, err := users.FindByID(ctx, found.ID)
		if errors.Is(err, db.ErrNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return storeError(err)
		}
		if !current.IsActive {
			return ErrAccountDisabled
		}

		now := s.now().UTC()
		if err := users.MarkOnline(ctx, current.ID, now); err != nil {
			return storeError(err)
		}
		current.Status = models.StatusOnline
		current.LastSeenAt = &now
		current.UpdatedAt = now

		user = current
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}

	return s.bundle(user)
}

// Refresh exchanges a valid refresh token for a new token pair. The presented
// token is not consumed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthBundle, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.database.Users().FindByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: subject no longer exists", auth.ErrInvalidToken)
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return s.bundle(user)
}

// Me returns the public view of an active user.
func (s *AuthService) Me(ctx context.Context, userID int64) (*models.PublicUser, error) {
	user, err := s.database.Users().FindByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}

	view := user.Public()
	return &view, nil
}

// Deactivate clears the active flag. The record is kept.
func (s *AuthService) Deactivate(ctx context.Context, userID int64) error {
	err := s.database.Users().SetActive(ctx, userID, false)
	if errors.Is(err, db.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return storeError(err)
	}

	slog.Info("user deactivated", "component", "auth", "user_id", userID)
	return nil
}

func (s *AuthService) bundle(user *models.User) (*models.AuthBundle, error) {
	accessToken, expiresAt, err := s.tokens.IssueAccess(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}

	return &models.AuthBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    models.TokenTypeBearer,
		ExpiresAt:    expiresAt.UTC().Format(time.RFC3339),
		User:         user.Public(),
	}, nil
}

func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

// txError classifies failures from BEGIN or COMMIT, which reach the caller
// without passing through the transaction body.
func txError(err error) error {
	switch {
	case errors.Is(err, ErrDuplicateIdentity),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrStore):
		return err
	}
	return storeError(err)
}
