package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type completionRepository struct {
	db *sql.DB
}

// NewCompletionRepository creates a new material completion repository
func NewCompletionRepository(db *sql.DB) *completionRepository {
	return &completionRepository{
		db: db,
	}
}

// Create records that a student completed a material. It reports false when it was already recorded.
func (r *completionRepository) Create(ctx context.Context, studentID, courseID, materialID int, completedAt time.Time) (bool, error) {
	query := `
		INSERT IGNORE INTO material_completions (student_id, course_id, material_id, completed_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, studentID, courseID, materialID, completedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create material completion: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMaterialIDs returns the materials a student completed in a course
func (r *completionRepository) ListMaterialIDs(ctx context.Context, studentID, courseID int) ([]int, error) {
	query := `
		SELECT material_id
		FROM material_completions
		WHERE student_id = ? AND course_id = ?
		ORDER BY material_id
	`

	rows, err := r.db.QueryContext(ctx, query, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query material completions: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan material completion: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// CountByCourse returns the number of materials a student completed in a course
func (r *completionRepository) CountByCourse(ctx context.Context, studentID, courseID int) (int, error) {
	query := `SELECT COUNT(*) FROM material_completions WHERE student_id = ? AND course_id = ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, studentID, courseID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count material completions: %w", err)
	}
	return count, nil
}
