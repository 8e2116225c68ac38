package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/learnsy/backend/internal/models"
)

type materialRepository struct {
	db *sql.DB
}

// NewMaterialRepository creates a new material repository
func NewMaterialRepository(db *sql.DB) *materialRepository {
	return &materialRepository{
		db: db,
	}
}

// NextPosition returns the position after the last material of a course
func (r *materialRepository) NextPosition(ctx context.Context, courseID int) (int, error) {
	query := `SELECT COALESCE(MAX(position) + 1, 0) FROM materials WHERE course_id = ?`

	var position int
	if err := r.db.QueryRowContext(ctx, query, courseID).Scan(&position); err != nil {
		return 0, fmt.Errorf("failed to get next material position: %w", err)
	}
	return position, nil
}

// Create inserts a new material
func (r *materialRepository) Create(ctx context.Context, m *models.Material) error {
	query := `
		INSERT INTO materials (course_id, title, description, type, storage_key, external_url, file_name, content_type, size, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		m.CourseID, m.Title, m.Description, m.Type, m.StorageKey, m.ExternalURL,
		m.FileName, m.ContentType, m.Size, m.Position, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	m.ID = int(id)
	return nil
}

const materialColumns = `id, course_id, title, description, type, storage_key, external_url, file_name, content_type, size, position, created_at`

func scanMaterial(row interface{ Scan(...any) error }) (*models.Material, error) {
	var m models.Material
	err := row.Scan(
		&m.ID,
		&m.CourseID,
		&m.Title,
		&m.Description,
		&m.Type,
		&m.StorageKey,
		&m.ExternalURL,
		&m.FileName,
		&m.ContentType,
		&m.Size,
		&m.Position,
		&m.CreatedAt,
	)
	return &m, err
}

// GetByID retrieves a material by ID
func (r *materialRepository) GetByID(ctx context.Context, id int) (*models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE id = ? LIMIT 1`

	m, err := scanMaterial(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("material")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get material by id: %w", err)
	}
	return m, nil
}

// ListByCourse retrieves the materials of a course in course order
func (r *materialRepository) ListByCourse(ctx context.Context, courseID int) ([]models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE course_id = ? ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer rows.Close()

	materials := make([]models.Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return materials, nil
}

// Update stores the editable fields of a material
func (r *materialRepository) Update(ctx context.Context, m *models.Material) error {
	query := `UPDATE materials SET title = ?, description = ?, position = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, m.Title, m.Description, m.Position, m.ID); err != nil {
		return fmt.Errorf("failed to update material: %w", err)
	}
	return nil
}

// Delete deletes a material and its completions
func (r *materialRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete material: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("material")
	}
	return nil
}

// ListStorageKeysByCourse returns the storage keys of a course's file materials
func (r *materialRepository) ListStorageKeysByCourse(ctx context.Context, courseID int) ([]string, error) {
	query := `SELECT storage_key FROM materials WHERE course_id = ? AND storage_key <> ''`

	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan storage key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return keys, nil
}

// CountByCourse returns the number of materials in a course
func (r *materialRepository) CountByCourse(ctx context.Context, courseID int) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM materials WHERE course_id = ?`, courseID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count materials: %w", err)
	}
	return count, nil
}
