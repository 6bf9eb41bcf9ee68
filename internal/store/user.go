package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gamevault/apiserver/types"
	"github.com/lib/pq"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a UserRepository on db.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
		id, username, email, password_hash, is_admin, created_at, updated_at,
		COALESCE((SELECT array_agg(l.game_id ORDER BY l.seq) FROM user_library l WHERE l.user_id = users.id), '{}')`

// GetByID returns the user with its library ids.
func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// FindByIdentity looks a user up by username or, case-insensitively, by email.
// An email match wins when the identity matches two different users.
func (r *UserRepository) FindByIdentity(ctx context.Context, identity string) (types.User, error) {
	query := `SELECT` + userColumns + `
		FROM users
		WHERE username = $1 OR email = lower($1)
		ORDER BY (email = lower($1)) DESC
		LIMIT 1`
	return r.scanOne(ctx, query, identity)
}

// ExistsByUsernameOrEmail reports whether either identity field is taken.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Exists reports whether a user with the given id exists.
func (r *UserRepository) Exists(ctx context.Context, id int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Create inserts user and returns it with its generated id. Unique violations map to ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Library = []int{}

	const query = `
		INSERT INTO users (username, email, password_hash, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *UserRepository) scanOne(ctx context.Context, query string, arg any) (types.User, error) {
	var user types.User
	var library pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&library,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("db error: %w", err)
	}

	user.Library = make([]int, 0, len(library))
	for _, id := range library {
		user.Library = append(user.Library, int(id))
	}
	return user, nil
}
