package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"usersvc/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

const userColumns = `id, username, email, password_hash, display_name, avatar, bio, status,
       custom_status, is_verified, is_active, created_at, updated_at, last_seen_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts user and fills in the store-assigned id and timestamps.
// A username or email collision returns ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, display_name, avatar, bio, status,
                            custom_status, is_verified, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.DisplayName, user.Avatar, user.Bio, user.Status,
		user.CustomStatus, user.IsVerified, user.IsActive, now, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}

	created := *user
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindByUsernameOrEmail matches identifier against either column. Usernames
// are compared exactly, emails case-insensitively.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? ORDER BY username = ? DESC LIMIT 1`,
		identifier, identifier, identifier,
	)
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
}

// MarkOnline sets the presence status to ONLINE and stamps last_seen_at.
func (r *UserRepository) MarkOnline(ctx context.Context, id int64, at time.Time) error {
	return r.updateStatus(ctx, id, models.StatusOnline, at)
}

func (r *UserRepository) updateStatus(ctx context.Context, id int64, status models.Status, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = ?, last_seen_at = ?, updated_at = ? WHERE id = ?`,
		status, at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating user status: %w", err)
	}
	return checkRowsAffected(result)
}

// SetActive flips the active flag. Deactivated users are also marked OFFLINE.
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	now := time.Now().UTC()
	query := `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`
	args := []any{active, now, id}
	if !active {
		query = `UPDATE users SET is_active = ?, status = ?, updated_at = ? WHERE id = ?`
		args = []any{active, models.StatusOffline, now, id}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user active flag: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user existence: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	var avatar, bio, customStatus sql.NullString
	var lastSeenAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.DisplayName,
		&avatar,
		&bio,
		&u.Status,
		&customStatus,
		&u.IsVerified,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastSeenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.Avatar = nullStringToPtr(avatar)
	u.Bio = nullStringToPtr(bio)
	u.CustomStatus = nullStringToPtr(customStatus)
	u.LastSeenAt = nullTimeToPtr(lastSeenAt)

	return &u, nil
}
