package postgres

import (
	"context"
	"fmt"

	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			id, telegram_id, username, first_name, last_name,
			role, is_banned, ban_reason, created_at, last_active_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.Exec(ctx, query,
		u.ID,
		int64(u.TelegramID),
		u.Username,
		u.FirstName,
		u.LastName,
		string(u.Role),
		u.IsBanned,
		u.BanReason,
		u.CreatedAt,
		u.LastActiveAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrUserAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByTelegramID returns a user by Telegram ID.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID user.TelegramID) (*user.User, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name,
			   role, is_banned, ban_reason, created_at, last_active_at
		FROM users
		WHERE telegram_id = $1
	`

	row := r.conn.QueryRow(ctx, query, int64(telegramID))

	var u user.User
	var telegramIDRaw int64
	var role string
	err := row.Scan(
		&u.ID,
		&telegramIDRaw,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&role,
		&u.IsBanned,
		&u.BanReason,
		&u.CreatedAt,
		&u.LastActiveAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	u.TelegramID = user.TelegramID(telegramIDRaw)
	u.Role = user.Role(role)
	return &u, nil
}

// Update updates a user.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			username = $1,
			first_name = $2,
			last_name = $3,
			role = $4,
			is_banned = $5,
			ban_reason = $6,
			last_active_at = $7
		WHERE telegram_id = $8
	`

	result, err := r.conn.Exec(ctx, query,
		u.Username,
		u.FirstName,
		u.LastName,
		string(u.Role),
		u.IsBanned,
		u.BanReason,
		u.LastActiveAt,
		int64(u.TelegramID),
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}

	return nil
}

// Count returns the total number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
