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

// setupMaterialTestRepository creates a material repository with a mock database
func setupMaterialTestRepository(t *testing.T) (*materialRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewMaterialRepository(db)

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

var materialRowColumns = []string{
	"id", "course_id", "title", "description", "type", "storage_key", "external_url",
	"file_name", "content_type", "size", "position", "created_at",
}

func TestMaterialRepository_NextPosition(t *testing.T) {
	repo, mock, cleanup := setupMaterialTestRepository(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\) \+ 1, 0\) FROM materials`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(4))

	position, err := repo.NextPosition(context.Background(), 3)

	assert.NoError(t, err)
	assert.Equal(t, 4, position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialRepository_Create(t *testing.T) {
	repo, mock, cleanup := setupMaterialTestRepository(t)
	defer cleanup()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	m := &models.Material{
		CourseID:    3,
		Title:       "Lecture 1",
		Type:        models.MaterialVideo,
		StorageKey:  "materials/3/abc.mp4",
		FileName:    "lecture.mp4",
		ContentType: "video/mp4",
		Size:        2048,
		Position:    4,
		CreatedAt:   now,
	}
	mock.ExpectExec(`INSERT INTO materials`).
		WithArgs(3, "Lecture 1", "", models.MaterialVideo, "materials/3/abc.mp4", "", "lecture.mp4", "video/mp4", int64(2048), 4, now).
		WillReturnResult(sqlmock.NewResult(9, 1))

	require.NoError(t, repo.Create(context.Background(), m))
	assert.Equal(t, 9, m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialRepository_ListByCourse(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedTypes []models.MaterialType
		expectedError bool
	}{
		{
			name: "ordered list",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM materials WHERE course_id = \? ORDER BY position, id`).
					WithArgs(3).
					WillReturnRows(sqlmock.NewRows(materialRowColumns).
						AddRow(1, 3, "Intro", "", "video", "k1", "", "a.mp4", "video/mp4", 10, 0, now).
						AddRow(2, 3, "Docs", "", "link", "", "https://go.dev", "", "", 0, 1, now))
			},
			expectedTypes: []models.MaterialType{models.MaterialVideo, models.MaterialLink},
		},
		{
			name: "empty course",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM materials WHERE course_id = \?`).WithArgs(3).WillReturnRows(sqlmock.NewRows(materialRowColumns))
			},
			expectedTypes: []models.MaterialType{},
		},
		{
			name: "scan error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM materials WHERE course_id = \?`).WithArgs(3).
					WillReturnRows(sqlmock.NewRows(materialRowColumns).
						AddRow("x", 3, "Intro", "", "video", "k1", "", "a.mp4", "video/mp4", 10, 0, now))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMaterialTestRepository(t)
			defer cleanup()
			tt.setupMock(mock)

			materials, err := repo.ListByCourse(context.Background(), 3)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				types := make([]models.MaterialType, 0, len(materials))
				for _, m := range materials {
					types = append(types, m.Type)
				}
				assert.Equal(t, tt.expectedTypes, types)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMaterialRepository_GetByID(t *testing.T) {
	repo, mock, cleanup := setupMaterialTestRepository(t)
	defer cleanup()

	mock.ExpectQuery(`FROM materials WHERE id = \?`).WithArgs(9).WillReturnError(sql.ErrNoRows)

	m, err := repo.GetByID(context.Background(), 9)

	assert.Nil(t, m)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialRepository_ListStorageKeysByCourse(t *testing.T) {
	repo, mock, cleanup := setupMaterialTestRepository(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT storage_key FROM materials WHERE course_id = \? AND storage_key <> ''`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("materials/3/a.mp4").AddRow("materials/3/b.pdf"))

	keys, err := repo.ListStorageKeysByCourse(context.Background(), 3)

	assert.NoError(t, err)
	assert.Equal(t, []string{"materials/3/a.mp4", "materials/3/b.pdf"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialRepository_Delete(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError bool
		notFound      bool
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM materials WHERE id = \?`).WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM materials WHERE id = \?`).WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedError: true,
			notFound:      true,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM materials WHERE id = \?`).WithArgs(9).WillReturnError(errors.New("database error"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMaterialTestRepository(t)
			defer cleanup()
			tt.setupMock(mock)

			err := repo.Delete(context.Background(), 9)

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

func TestCompletionRepository_Create(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		affected        int64
		expectedCreated bool
	}{
		{name: "first completion", affected: 1, expectedCreated: true},
		{name: "already completed", affected: 0, expectedCreated: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewCompletionRepository(db)

			mock.ExpectExec(`INSERT IGNORE INTO material_completions`).
				WithArgs(1, 3, 9, now).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			created, err := repo.Create(context.Background(), 1, 3, 9, now)

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedCreated, created)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCompletionRepository_ListMaterialIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCompletionRepository(db)

	mock.ExpectQuery(`SELECT material_id\s+FROM material_completions`).
		WithArgs(1, 3).
		WillReturnRows(sqlmock.NewRows([]string{"material_id"}).AddRow(2).AddRow(5))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM material_completions`).
		WithArgs(1, 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	ids, err := repo.ListMaterialIDs(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, ids)

	count, err := repo.CountByCourse(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
