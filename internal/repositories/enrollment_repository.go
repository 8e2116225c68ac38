package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/learnsy/backend/internal/models"
)

type enrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *sql.DB) *enrollmentRepository {
	return &enrollmentRepository{
		db: db,
	}
}

// Create inserts a new enrollment. A second enrollment in the same course fails with models.ErrDuplicate.
func (r *enrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (student_id, course_id, status, percentage, lessons_completed, enrolled_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		e.StudentID, e.CourseID, e.Status, e.Progress.Percentage, e.Progress.LessonsCompleted, e.EnrolledAt, e.UpdatedAt,
	)
	if isDuplicate(err) {
		return fmt.Errorf("already enrolled: %w", models.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	e.ID = int(id)
	return nil
}

const enrollmentColumns = `e.id, e.student_id, e.course_id, e.status, e.percentage, e.lessons_completed, e.enrolled_at, e.updated_at`

func enrollmentDest(e *models.Enrollment) []any {
	return []any{
		&e.ID,
		&e.StudentID,
		&e.CourseID,
		&e.Status,
		&e.Progress.Percentage,
		&e.Progress.LessonsCompleted,
		&e.EnrolledAt,
		&e.UpdatedAt,
	}
}

func (r *enrollmentRepository) getOne(ctx context.Context, where string, args ...any) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE ` + where + ` LIMIT 1`

	var e models.Enrollment
	err := r.db.QueryRowContext(ctx, query, args...).Scan(enrollmentDest(&e)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("enrollment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &e, nil
}

// GetByID retrieves an enrollment by ID
func (r *enrollmentRepository) GetByID(ctx context.Context, id int) (*models.Enrollment, error) {
	return r.getOne(ctx, "e.id = ?", id)
}

// GetByStudentAndCourse retrieves a student's enrollment in a course
func (r *enrollmentRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID int) (*models.Enrollment, error) {
	return r.getOne(ctx, "e.student_id = ? AND e.course_id = ?", studentID, courseID)
}

// ListByStudent retrieves a student's enrollments with course summaries, newest first
func (r *enrollmentRepository) ListByStudent(ctx context.Context, studentID int) ([]models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `, c.id, c.title, c.category, c.level
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.student_id = ?
		ORDER BY e.enrolled_at DESC, e.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]models.Enrollment, 0)
	for rows.Next() {
		var (
			e      models.Enrollment
			course models.CourseSummary
		)
		dest := append(enrollmentDest(&e), &course.ID, &course.Title, &course.Category, &course.Level)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		e.Course = &course
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return enrollments, nil
}

// ListByCourse retrieves the enrollments of a course with student summaries
func (r *enrollmentRepository) ListByCourse(ctx context.Context, courseID int) ([]models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `, u.id, u.name, u.email
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.course_id = ?
		ORDER BY e.enrolled_at, e.id
	`

	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]models.Enrollment, 0)
	for rows.Next() {
		var (
			e       models.Enrollment
			student models.StudentSummary
		)
		dest := append(enrollmentDest(&e), &student.ID, &student.Name, &student.Email)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		e.Student = &student
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return enrollments, nil
}

// UpdateProgress stores recalculated progress and status
func (r *enrollmentRepository) UpdateProgress(ctx context.Context, id int, progress models.Progress, status models.EnrollmentStatus, updatedAt time.Time) error {
	query := `
		UPDATE enrollments
		SET percentage = ?, lessons_completed = ?, status = ?, updated_at = ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, progress.Percentage, progress.LessonsCompleted, status, updatedAt, id); err != nil {
		return fmt.Errorf("failed to update enrollment progress: %w", err)
	}
	return nil
}

// Delete removes an enrollment together with the student's completions in that course
func (r *enrollmentRepository) Delete(ctx context.Context, e *models.Enrollment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM material_completions WHERE student_id = ? AND course_id = ?`, e.StudentID, e.CourseID,
	); err != nil {
		return fmt.Errorf("failed to delete material completions: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = ?`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("enrollment")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
