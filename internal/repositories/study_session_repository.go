package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/learnsy/backend/internal/models"
)

type studySessionRepository struct {
	db *sql.DB
}

// NewStudySessionRepository creates a new study session repository
func NewStudySessionRepository(db *sql.DB) *studySessionRepository {
	return &studySessionRepository{
		db: db,
	}
}

// Create inserts an open session. A second open session for the student fails with models.ErrDuplicate.
func (r *studySessionRepository) Create(ctx context.Context, s *models.StudySession) error {
	query := `
		INSERT INTO study_sessions (student_id, course_id, activity, started_at, last_seen_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		s.StudentID, nullInt(s.CourseID), s.Activity, s.StartedAt, s.LastSeenAt, s.DurationSeconds,
	)
	if isDuplicate(err) {
		return fmt.Errorf("open study session exists: %w", models.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create study session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	s.ID = int(id)
	return nil
}

const studySessionColumns = `id, student_id, course_id, activity, started_at, last_seen_at, ended_at, duration_seconds, end_reason`

func scanStudySession(row interface{ Scan(...any) error }) (*models.StudySession, error) {
	var (
		s         models.StudySession
		courseID  sql.NullInt64
		endedAt   sql.NullTime
		endReason sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.StudentID,
		&courseID,
		&s.Activity,
		&s.StartedAt,
		&s.LastSeenAt,
		&endedAt,
		&s.DurationSeconds,
		&endReason,
	)
	if err != nil {
		return nil, err
	}

	s.CourseID = intPtr(courseID)
	s.StartedAt = s.StartedAt.UTC()
	s.LastSeenAt = s.LastSeenAt.UTC()
	s.EndedAt = timePtr(endedAt)
	if endReason.Valid {
		reason := models.EndReason(endReason.String)
		s.EndReason = &reason
	}
	return &s, nil
}

// GetByID retrieves a session by ID
func (r *studySessionRepository) GetByID(ctx context.Context, id int) (*models.StudySession, error) {
	query := `SELECT ` + studySessionColumns + ` FROM study_sessions WHERE id = ? LIMIT 1`

	s, err := scanStudySession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("study session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get study session by id: %w", err)
	}
	return s, nil
}

// GetOpenByStudent retrieves the student's open session
func (r *studySessionRepository) GetOpenByStudent(ctx context.Context, studentID int) (*models.StudySession, error) {
	query := `SELECT ` + studySessionColumns + ` FROM study_sessions WHERE student_id = ? AND ended_at IS NULL LIMIT 1`

	s, err := scanStudySession(r.db.QueryRowContext(ctx, query, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("open study session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open study session: %w", err)
	}
	return s, nil
}

// Touch records a heartbeat on an open session. It reports false when the session was already closed.
func (r *studySessionRepository) Touch(ctx context.Context, s *models.StudySession) (bool, error) {
	query := `
		UPDATE study_sessions
		SET last_seen_at = ?, activity = ?, duration_seconds = ?
		WHERE id = ? AND ended_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, s.LastSeenAt, s.Activity, s.DurationSeconds, s.ID)
	if err != nil {
		return false, fmt.Errorf("failed to touch study session: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes an open session with the given end state. It reports false when someone else closed it first.
func (r *studySessionRepository) Close(ctx context.Context, s *models.StudySession) (bool, error) {
	if s.EndedAt == nil || s.EndReason == nil {
		return false, fmt.Errorf("closing a study session requires an end time and reason")
	}

	query := `
		UPDATE study_sessions
		SET last_seen_at = ?, ended_at = ?, duration_seconds = ?, end_reason = ?
		WHERE id = ? AND ended_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, s.LastSeenAt, *s.EndedAt, s.DurationSeconds, *s.EndReason, s.ID)
	if err != nil {
		return false, fmt.Errorf("failed to close study session: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByStudent retrieves a student's sessions, newest first
func (r *studySessionRepository) ListByStudent(ctx context.Context, studentID, page, count int) ([]models.StudySession, error) {
	query := `
		SELECT ` + studySessionColumns + `
		FROM study_sessions
		WHERE student_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	return r.querySessions(ctx, query, studentID, count, (page-1)*count)
}

// ListEndedSince retrieves a student's closed sessions that ended at or after since
func (r *studySessionRepository) ListEndedSince(ctx context.Context, studentID int, since time.Time) ([]models.StudySession, error) {
	query := `
		SELECT ` + studySessionColumns + `
		FROM study_sessions
		WHERE student_id = ? AND ended_at IS NOT NULL AND ended_at >= ?
		ORDER BY ended_at
	`
	return r.querySessions(ctx, query, studentID, since)
}

func (r *studySessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]models.StudySession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query study sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.StudySession, 0)
	for rows.Next() {
		s, err := scanStudySession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan study session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// EndedDays returns the distinct UTC days on which the student closed a session, newest first
func (r *studySessionRepository) EndedDays(ctx context.Context, studentID, limit int) ([]time.Time, error) {
	query := `
		SELECT DISTINCT DATE(ended_at) AS day
		FROM study_sessions
		WHERE student_id = ? AND ended_at IS NOT NULL
		ORDER BY day DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query study days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan study day: %w", err)
		}
		days = append(days, day.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return days, nil
}

// TotalSeconds returns the recorded time of all the student's closed sessions
func (r *studySessionRepository) TotalSeconds(ctx context.Context, studentID int) (int64, error) {
	query := `SELECT COALESCE(SUM(duration_seconds), 0) FROM study_sessions WHERE student_id = ? AND ended_at IS NOT NULL`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, studentID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum study time: %w", err)
	}
	return total, nil
}

// CloseStale closes every open session last seen before cutoff. The session ends at its last heartbeat.
func (r *studySessionRepository) CloseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE study_sessions
		SET ended_at = last_seen_at, end_reason = ?
		WHERE ended_at IS NULL AND last_seen_at < ?
	`

	result, err := r.db.ExecContext(ctx, query, models.EndReasonSwept, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale study sessions: %w", err)
	}
	return rowsAffected(result)
}
