package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gamevault/apiserver/internal/db"
	"github.com/gamevault/apiserver/types"
)

// GameRepository handles persistence for catalog games.
type GameRepository struct {
	db *sql.DB
}

// NewGameRepository constructs a GameRepository on db.
func NewGameRepository(db *sql.DB) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `id, title, description, price, cover_url, genre, release_date, created_by, created_at, updated_at`

// List returns all games, newest first. A non-empty search restricts the
// result to titles containing it, ignoring case.
func (r *GameRepository) List(ctx context.Context, search string) ([]types.Game, error) {
	var (
		rows *sql.Rows
		err  error
	)
	search = strings.TrimSpace(search)
	if search == "" {
		query := `SELECT ` + gameColumns + `
			FROM games
			ORDER BY created_at DESC, id DESC`
		rows, err = r.db.QueryContext(ctx, query)
	} else {
		query := `SELECT ` + gameColumns + `
			FROM games
			WHERE title ILIKE '%' || $1 || '%' ESCAPE '\'
			ORDER BY created_at DESC, id DESC`
		rows, err = r.db.QueryContext(ctx, query, escapeLike(search))
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// Get returns the game with the given id or ErrNotFound.
func (r *GameRepository) Get(ctx context.Context, id int) (types.Game, error) {
	query := `SELECT ` + gameColumns + `
		FROM games
		WHERE id = $1`
	game, err := scanGame(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Game{}, ErrNotFound
		}
		return types.Game{}, fmt.Errorf("db error: %w", err)
	}
	return game, nil
}

// Create inserts game and returns the stored row.
func (r *GameRepository) Create(ctx context.Context, game types.Game) (types.Game, error) {
	now := time.Now()
	game.CreatedAt = now
	game.UpdatedAt = now

	const query = `
		INSERT INTO games (title, description, price, cover_url, genre, release_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		game.Title,
		game.Description,
		game.Price,
		game.CoverURL,
		game.Genre,
		game.ReleaseDate,
		game.CreatedBy,
		game.CreatedAt,
		game.UpdatedAt,
	).Scan(&game.ID); err != nil {
		return types.Game{}, fmt.Errorf("db error: %w", err)
	}
	return game, nil
}

// Update overwrites the mutable fields of game.
func (r *GameRepository) Update(ctx context.Context, game types.Game) (types.Game, error) {
	game.UpdatedAt = time.Now()

	const query = `
		UPDATE games
		SET title = $1,
			description = $2,
			price = $3,
			cover_url = $4,
			genre = $5,
			release_date = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		game.Title,
		game.Description,
		game.Price,
		game.CoverURL,
		game.Genre,
		game.ReleaseDate,
		game.UpdatedAt,
		game.ID,
	)
	if err != nil {
		return types.Game{}, fmt.Errorf("db error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Game{}, fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return types.Game{}, ErrNotFound
	}
	return game, nil
}

// Delete removes the game and every library reference to it in one
// transaction. It returns the number of libraries that referenced the game.
func (r *GameRepository) Delete(ctx context.Context, id int) (int64, error) {
	var detached int64
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM user_library WHERE game_id = $1`, id)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if detached, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		result, err = tx.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return detached, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (types.Game, error) {
	var game types.Game
	var releaseDate sql.NullTime
	var createdBy sql.NullInt64
	if err := row.Scan(
		&game.ID,
		&game.Title,
		&game.Description,
		&game.Price,
		&game.CoverURL,
		&game.Genre,
		&releaseDate,
		&createdBy,
		&game.CreatedAt,
		&game.UpdatedAt,
	); err != nil {
		return types.Game{}, err
	}

	if releaseDate.Valid {
		t := releaseDate.Time
		game.ReleaseDate = &t
	}
	if createdBy.Valid {
		owner := int(createdBy.Int64)
		game.CreatedBy = &owner
	}
	return game, nil
}

func scanGames(rows *sql.Rows) ([]types.Game, error) {
	games := make([]types.Game, 0)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return games, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
