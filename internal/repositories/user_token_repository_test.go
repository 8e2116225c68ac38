package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/learnsy/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupUserTokenTestRepository creates a user token repository with a mock database
func setupUserTokenTestRepository(t *testing.T) (*userTokenRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewUserTokenRepository(db)

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

func TestNewUserTokenRepository(t *testing.T) {
	db := &sql.DB{}

	repo := NewUserTokenRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestUserTokenRepository_Create(t *testing.T) {
	repo, mock, cleanup := setupUserTokenTestRepository(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO user_tokens`).
		WithArgs(1, "refresh").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.UserToken{UserID: 1, Token: "refresh"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserTokenRepository_GetByToken(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, user_id, token\s+FROM user_tokens`).
					WithArgs("refresh").
					WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token"}).AddRow(4, 1, "refresh"))
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, user_id, token\s+FROM user_tokens`).
					WithArgs("refresh").
					WillReturnError(sql.ErrNoRows)
			},
			expectedError: models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTokenTestRepository(t)
			defer cleanup()
			tt.setupMock(mock)

			token, err := repo.GetByToken(context.Background(), "refresh")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, token)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 4, token.ID)
				assert.Equal(t, 1, token.UserID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserTokenRepository_UpdateToken(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError bool
		notFound      bool
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE user_tokens`).
					WithArgs("new", "old", 1).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "token missing or owned by someone else",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE user_tokens`).
					WithArgs("new", "old", 1).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedError: true,
			notFound:      true,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE user_tokens`).
					WithArgs("new", "old", 1).
					WillReturnError(errors.New("database error"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTokenTestRepository(t)
			defer cleanup()
			tt.setupMock(mock)

			err := repo.UpdateToken(context.Background(), "old", "new", 1)

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.notFound, errors.Is(err, models.ErrNotFound))
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserTokenRepository_DeleteExpiredTokens(t *testing.T) {
	repo, mock, cleanup := setupUserTokenTestRepository(t)
	defer cleanup()

	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM user_tokens WHERE created_at <= \?`).
		WithArgs(expiry).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpiredTokens(context.Background(), expiry)

	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
