package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/learnsy/backend/internal/models"
)

type courseRepository struct {
	db *sql.DB
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *sql.DB) *courseRepository {
	return &courseRepository{
		db: db,
	}
}

// Create inserts a course together with its modules
func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO courses (faculty_id, title, description, category, level, duration, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		course.FacultyID, course.Title, course.Description, course.Category, course.Level,
		course.Duration, course.Published, course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	course.ID = int(id)

	if err := insertModules(ctx, tx, course.ID, course.Modules); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertModules stores modules in order, assigning positions and IDs
func insertModules(ctx context.Context, tx *sql.Tx, courseID int, modules []models.CourseModule) error {
	query := `
		INSERT INTO course_modules (course_id, position, title, description, duration)
		VALUES (?, ?, ?, ?, ?)
	`
	for i := range modules {
		modules[i].CourseID = courseID
		modules[i].Position = i
		result, err := tx.ExecContext(ctx, query, courseID, i, modules[i].Title, modules[i].Description, modules[i].Duration)
		if err != nil {
			return fmt.Errorf("failed to create course module: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		modules[i].ID = int(id)
	}
	return nil
}

const courseSelect = `
	SELECT
		c.id,
		c.faculty_id,
		u.name,
		c.title,
		c.description,
		c.category,
		c.level,
		c.duration,
		c.published,
		(SELECT COUNT(*) FROM materials m WHERE m.course_id = c.id) AS material_count,
		c.created_at,
		c.updated_at
	FROM courses c
	JOIN users u ON u.id = c.faculty_id
`

func scanCourse(row interface{ Scan(...any) error }) (*models.Course, error) {
	var course models.Course
	err := row.Scan(
		&course.ID,
		&course.FacultyID,
		&course.FacultyName,
		&course.Title,
		&course.Description,
		&course.Category,
		&course.Level,
		&course.Duration,
		&course.Published,
		&course.MaterialCount,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	return &course, err
}

// GetByID retrieves a course with its modules
func (r *courseRepository) GetByID(ctx context.Context, id int) (*models.Course, error) {
	course, err := scanCourse(r.db.QueryRowContext(ctx, courseSelect+`WHERE c.id = ? LIMIT 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("course")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course by id: %w", err)
	}

	if course.Modules, err = r.getModules(ctx, id); err != nil {
		return nil, err
	}
	return course, nil
}

func (r *courseRepository) getModules(ctx context.Context, courseID int) ([]models.CourseModule, error) {
	query := `
		SELECT id, course_id, position, title, description, duration
		FROM course_modules
		WHERE course_id = ?
		ORDER BY position, id
	`

	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query course modules: %w", err)
	}
	defer rows.Close()

	modules := make([]models.CourseModule, 0)
	for rows.Next() {
		var m models.CourseModule
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Position, &m.Title, &m.Description, &m.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan course module: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return modules, nil
}

// List retrieves published courses with filtering and pagination
func (r *courseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	whereClauses := []string{"c.published = TRUE"}
	args := []any{}

	if filter.Category != "" {
		whereClauses = append(whereClauses, "c.category = ?")
		args = append(args, filter.Category)
	}

	if filter.Level != nil {
		whereClauses = append(whereClauses, "c.level = ?")
		args = append(args, *filter.Level)
	}

	if filter.Search != "" {
		whereClauses = append(whereClauses, "(c.title LIKE ? OR c.description LIKE ?)")
		pattern := "%" + escapeLike(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}

	// Calculate offset
	offset := (filter.Page - 1) * filter.Count

	query := courseSelect + "WHERE " + strings.Join(whereClauses, " AND ") + `
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, filter.Count, offset)

	return r.queryCourses(ctx, query, args...)
}

// ListByFaculty retrieves every course of a faculty member, published or not
func (r *courseRepository) ListByFaculty(ctx context.Context, facultyID int) ([]models.Course, error) {
	query := courseSelect + `WHERE c.faculty_id = ? ORDER BY c.created_at DESC, c.id DESC`
	return r.queryCourses(ctx, query, facultyID)
}

func (r *courseRepository) queryCourses(ctx context.Context, query string, args ...any) ([]models.Course, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer rows.Close()

	courses := make([]models.Course, 0)
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, *course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return courses, nil
}

// Update stores the course fields. When replaceModules is set the syllabus is replaced by course.Modules.
func (r *courseRepository) Update(ctx context.Context, course *models.Course, replaceModules bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE courses
		SET title = ?, description = ?, category = ?, level = ?, duration = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, query,
		course.Title, course.Description, course.Category, course.Level, course.Duration, course.UpdatedAt, course.ID,
	); err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}

	if replaceModules {
		if _, err := tx.ExecContext(ctx, `DELETE FROM course_modules WHERE course_id = ?`, course.ID); err != nil {
			return fmt.Errorf("failed to delete course modules: %w", err)
		}
		if err := insertModules(ctx, tx, course.ID, course.Modules); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetPublished sets the published flag
func (r *courseRepository) SetPublished(ctx context.Context, id int, published bool, updatedAt time.Time) error {
	query := `UPDATE courses SET published = ?, updated_at = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, published, updatedAt, id); err != nil {
		return fmt.Errorf("failed to set course published: %w", err)
	}
	return nil
}

// Delete deletes a course. Modules, materials, enrollments and completions go with it.
func (r *courseRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("course")
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards in user input
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
