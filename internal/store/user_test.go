package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gamevault/apiserver/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var userRowColumns = []string{"id", "username", "email", "password_hash", "is_admin", "created_at", "updated_at", "library"}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(7, "ann", "a@x.com", "hash", false, now, now, "{3,1}"))

	user, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "ann", user.Username)
	assert.Equal(t, []int{3, 1}, user.Library)
	assert.False(t, user.IsAdmin)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_FindByIdentity(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1 OR email = lower\(\$1\)`).
		WithArgs("A@X.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "ann", "a@x.com", "hash", true, now, now, "{}"))

	user, err := repo.FindByIdentity(context.Background(), "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.True(t, user.IsAdmin)
	assert.Empty(t, user.Library)
	assert.NotNil(t, user.Library)
}

func TestUserRepository_ExistsByUsernameOrEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE username = \$1 OR email = \$2\)`).
		WithArgs("ann", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByUsernameOrEmail(context.Background(), "ann", "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users \(username, email, password_hash, is_admin, created_at, updated_at\) VALUES .* RETURNING id`).
		WithArgs("ann", "a@x.com", "hash", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	user, err := repo.Create(context.Background(), types.User{Username: "ann", Email: "a@x.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, 42, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, []int{}, user.Library)
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := repo.Create(context.Background(), types.User{Username: "ann", Email: "a@x.com", PasswordHash: "hash"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_Create_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), types.User{Username: "ann"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
	assert.NotErrorIs(t, err, ErrDuplicate)
}
