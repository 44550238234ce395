package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/domain"
)

var userCols = []string{"id", "email", "password_hash", "is_admin", "created_at", "updated_at"}

func TestPostgresStore_CreateUser(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	userToCreate := &domain.User{
		Email:        "admin@storefront.dev",
		PasswordHash: "$2a$10$hash",
		IsAdmin:      true,
	}

	rows := sqlmock.NewRows(userCols).
		AddRow(int64(1), userToCreate.Email, userToCreate.PasswordHash, true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (email, password_hash, is_admin)`)).
		WithArgs(userToCreate.Email, userToCreate.PasswordHash, true).
		WillReturnRows(rows)

	created, err := store.CreateUser(context.Background(), userToCreate)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, int64(1), created.ID)
	assert.True(t, created.IsAdmin)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateUser_EmailExists(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	pqErr := &pq.Error{Code: "23505", Constraint: "users_email_key"}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).WillReturnError(pqErr)

	created, err := store.CreateUser(context.Background(), &domain.User{Email: "taken@storefront.dev"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmailExists), "Error should be ErrEmailExists")
	assert.Nil(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetUserByEmail(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows(userCols).
			AddRow(int64(2), "shopper@storefront.dev", "$2a$10$hash", false, now, now)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
			WithArgs("shopper@storefront.dev").
			WillReturnRows(rows)

		user, err := store.GetUserByEmail(context.Background(), "shopper@storefront.dev")
		require.NoError(t, err)
		assert.Equal(t, int64(2), user.ID)
		assert.False(t, user.IsAdmin)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
			WithArgs("ghost@storefront.dev").
			WillReturnError(sql.ErrNoRows)

		user, err := store.GetUserByEmail(context.Background(), "ghost@storefront.dev")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUserNotFound))
		assert.Nil(t, user)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetUserByID_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	user, err := store.GetUserByID(context.Background(), 404)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUserNotFound))
	assert.Nil(t, user)

	require.NoError(t, mock.ExpectationsWereMet())
}
