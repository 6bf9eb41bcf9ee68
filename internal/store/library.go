package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gamevault/apiserver/types"
)

// LibraryRepository handles persistence for user libraries. A library is a
// set keyed by (user_id, game_id); seq preserves insertion order.
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository constructs a LibraryRepository on db.
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// IDs returns the game ids in the user's library in insertion order.
func (r *LibraryRepository) IDs(ctx context.Context, userID int) ([]int, error) {
	const query = `
		SELECT game_id
		FROM user_library
		WHERE user_id = $1
		ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

// Games resolves the user's library into full game records.
func (r *LibraryRepository) Games(ctx context.Context, userID int) ([]types.Game, error) {
	const query = `
		SELECT g.id, g.title, g.description, g.price, g.cover_url, g.genre, g.release_date, g.created_by, g.created_at, g.updated_at
		FROM user_library l
		JOIN games g ON g.id = l.game_id
		WHERE l.user_id = $1
		ORDER BY l.seq`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// Add inserts the game into the user's library. It returns ErrDuplicate when
// the pair already exists, including when a concurrent Add won the race, and
// ErrNotFound when either side no longer exists.
func (r *LibraryRepository) Add(ctx context.Context, userID, gameID int) error {
	const query = `
		INSERT INTO user_library (user_id, game_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, game_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, userID, gameID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

// Remove deletes the game from the user's library. Removing an absent game is not an error.
func (r *LibraryRepository) Remove(ctx context.Context, userID, gameID int) error {
	const query = `DELETE FROM user_library WHERE user_id = $1 AND game_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, gameID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
