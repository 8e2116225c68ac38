package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

// StudySessionRepository is the interface that wraps methods for StudySessions table data access
type StudySessionRepository interface {
	// Method Create inserts an open session.
	//
	// If the student already has an open session, a wrapped models.ErrDuplicate is returned.
	Create(ctx context.Context, s *models.StudySession) error
	// Method GetByID retrieves a session by ID.
	//
	// If session with such ID does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByID(ctx context.Context, id int) (*models.StudySession, error)
	// Method GetOpenByStudent retrieves the student's open session.
	//
	// If the student has none, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetOpenByStudent(ctx context.Context, studentID int) (*models.StudySession, error)
	// Method Touch stores a heartbeat of an open session.
	//
	// It reports false, changing nothing, when the session was closed in the meantime.
	Touch(ctx context.Context, s *models.StudySession) (bool, error)
	// Method Close stores the end state of an open session.
	//
	// It reports false, changing nothing, when the session was closed in the meantime.
	Close(ctx context.Context, s *models.StudySession) (bool, error)
	// Method ListByStudent retrieves a page of the student's sessions, newest first.
	ListByStudent(ctx context.Context, studentID, page, count int) ([]models.StudySession, error)
	// Method ListEndedSince retrieves the student's sessions that ended at or after "since".
	ListEndedSince(ctx context.Context, studentID int, since time.Time) ([]models.StudySession, error)
	// Method EndedDays retrieves up to "limit" distinct UTC days with an ended session, newest first.
	EndedDays(ctx context.Context, studentID, limit int) ([]time.Time, error)
	// Method TotalSeconds sums the duration of the student's ended sessions.
	TotalSeconds(ctx context.Context, studentID int) (int64, error)
	// Method CloseStale closes every open session last seen before "cutoff" at its last heartbeat.
	//
	// The number of closed sessions is returned.
	CloseStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stats window limits in days
const (
	DefaultStatsDays = 7
	MaxStatsDays     = 90
)

const (
	// startAttempts bounds how often Start retries when a concurrent start wins the race
	startAttempts = 3
	// maxStreakDays bounds the history read to compute a streak
	maxStreakDays = 366
)

type studySessionService struct {
	sessionRepo StudySessionRepository
	courseRepo  CourseReader
	idleTimeout time.Duration
	logger      *zap.Logger
	now         Clock
}

// NewStudySessionService creates a new study session service
func NewStudySessionService(sessionRepo StudySessionRepository, courseRepo CourseReader, idleTimeout time.Duration, logger *zap.Logger) *studySessionService {
	return &studySessionService{
		sessionRepo: sessionRepo,
		courseRepo:  courseRepo,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         SystemClock,
	}
}

// Start opens a new session for the calling student. An open session is closed first as superseded.
func (s *studySessionService) Start(ctx context.Context, actor models.Actor, req *models.StartSessionRequest) (*models.StudySession, error) {
	if !actor.IsStudent() {
		return nil, forbidden("only students track study sessions")
	}

	activity := req.Activity
	if activity == "" {
		activity = models.ActivityBrowsing
	}
	if !activity.Valid() {
		return nil, invalidInput("invalid activity %q", activity)
	}
	if req.CourseID != nil {
		if _, err := loadCourse(ctx, s.courseRepo, *req.CourseID); err != nil {
			return nil, err
		}
	}

	for range startAttempts {
		now := s.now()
		if err := s.supersedeOpen(ctx, actor.UserID, now); err != nil {
			return nil, err
		}

		session := &models.StudySession{
			StudentID:       actor.UserID,
			CourseID:        req.CourseID,
			Activity:        activity,
			StartedAt:       now,
			LastSeenAt:      now,
			DurationSeconds: 0,
		}
		err := s.sessionRepo.Create(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, models.ErrDuplicate) {
			return nil, err
		}
		// Another start opened a session in between, close it and try again
	}

	return nil, fmt.Errorf("could not open a study session, try again: %w", ErrConflict)
}

// supersedeOpen closes the student's open session, if any
func (s *studySessionService) supersedeOpen(ctx context.Context, studentID int, now time.Time) error {
	open, err := s.sessionRepo.GetOpenByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}

	closeSession(open, s.closeTime(open, now), models.EndReasonSuperseded)
	if _, err := s.sessionRepo.Close(ctx, open); err != nil {
		return err
	}
	return nil
}

// Ping records a heartbeat. A session idle for longer than the timeout is closed at its last heartbeat instead.
func (s *studySessionService) Ping(ctx context.Context, actor models.Actor, id int, activity models.Activity) (*models.StudySession, error) {
	if activity != "" && !activity.Valid() {
		return nil, invalidInput("invalid activity %q", activity)
	}

	session, err := s.ownSession(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, ErrSessionClosed
	}

	now := s.now()
	if s.isIdle(session, now) {
		closeSession(session, session.LastSeenAt, models.EndReasonIdle)
		if _, err := s.sessionRepo.Close(ctx, session); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	if now.After(session.LastSeenAt) {
		session.LastSeenAt = now
	}
	session.DurationSeconds = durationSeconds(session.StartedAt, session.LastSeenAt)
	if activity != "" {
		session.Activity = activity
	}

	touched, err := s.sessionRepo.Touch(ctx, session)
	if err != nil {
		return nil, err
	}
	if !touched {
		return nil, ErrSessionClosed
	}
	return session, nil
}

// End closes a session. Ending an ended session returns it unchanged.
func (s *studySessionService) End(ctx context.Context, actor models.Actor, id int) (*models.StudySession, error) {
	session, err := s.ownSession(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return session, nil
	}

	now := s.now()
	reason := models.EndReasonEnded
	if s.isIdle(session, now) {
		reason = models.EndReasonIdle
	}
	closeSession(session, s.closeTime(session, now), reason)

	closed, err := s.sessionRepo.Close(ctx, session)
	if err != nil {
		return nil, err
	}
	if !closed {
		// Closed concurrently, report the stored state
		return s.ownSession(ctx, actor, id)
	}
	return session, nil
}

// Active returns the calling student's open session. A session past the idle timeout is closed and not returned.
func (s *studySessionService) Active(ctx context.Context, actor models.Actor) (*models.StudySession, error) {
	session, err := s.sessionRepo.GetOpenByStudent(ctx, actor.UserID)
	if err != nil {
		return nil, mapRepoError(err, "open study session")
	}

	if s.isIdle(session, s.now()) {
		closeSession(session, session.LastSeenAt, models.EndReasonIdle)
		if _, err := s.sessionRepo.Close(ctx, session); err != nil {
			return nil, err
		}
		return nil, notFound("open study session")
	}
	return session, nil
}

// List returns a page of the calling student's sessions, newest first
func (s *studySessionService) List(ctx context.Context, actor models.Actor, page, count int) ([]models.StudySession, error) {
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = DefaultPageSize
	}
	if count > MaxPageSize {
		count = MaxPageSize
	}
	return s.sessionRepo.ListByStudent(ctx, actor.UserID, page, count)
}

// Stats returns the calling student's study statistics
func (s *studySessionService) Stats(ctx context.Context, actor models.Actor, days int) (*models.StudyStats, error) {
	return s.StatsFor(ctx, actor.UserID, days)
}

// StatsFor returns per-day totals for the last "days" UTC days, today's and this week's totals,
// the all-time total and the day streak. "days" defaults to 7 and is clamped to [1, 90].
func (s *studySessionService) StatsFor(ctx context.Context, studentID, days int) (*models.StudyStats, error) {
	if days == 0 {
		days = DefaultStatsDays
	}
	days = min(max(days, 1), MaxStatsDays)

	today := startOfDay(s.now())
	window := max(days, DefaultStatsDays)
	since := today.AddDate(0, 0, -(window - 1))

	sessions, err := s.sessionRepo.ListEndedSince(ctx, studentID, since)
	if err != nil {
		return nil, err
	}
	total, err := s.sessionRepo.TotalSeconds(ctx, studentID)
	if err != nil {
		return nil, err
	}
	endedDays, err := s.sessionRepo.EndedDays(ctx, studentID, maxStreakDays)
	if err != nil {
		return nil, err
	}

	week := dailyTotals(sessions, today, DefaultStatsDays)
	stats := &models.StudyStats{
		Days:         dailyTotals(sessions, today, days),
		TodaySeconds: week[len(week)-1].Seconds,
		TotalSeconds: total,
		StreakDays:   computeStreak(endedDays, today),
	}
	for _, d := range week {
		stats.WeekSeconds += d.Seconds
	}
	return stats, nil
}

// SweepIdle closes every open session whose last heartbeat is older than the idle timeout
func (s *studySessionService) SweepIdle(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.idleTimeout)
	closed, err := s.sessionRepo.CloseStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if closed > 0 {
		s.logger.Info("closed idle study sessions", zap.Int64("count", closed), zap.Time("cutoff", cutoff))
	}
	return closed, nil
}

// ownSession loads a session of the calling student. Other students' sessions look missing.
func (s *studySessionService) ownSession(ctx context.Context, actor models.Actor, id int) (*models.StudySession, error) {
	session, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "study session")
	}
	if session.StudentID != actor.UserID {
		return nil, notFound("study session")
	}
	return session, nil
}

func (s *studySessionService) isIdle(session *models.StudySession, now time.Time) bool {
	return now.Sub(session.LastSeenAt) > s.idleTimeout
}

// closeTime is now, or the last heartbeat when the session already went idle
func (s *studySessionService) closeTime(session *models.StudySession, now time.Time) time.Time {
	if s.isIdle(session, now) {
		return session.LastSeenAt
	}
	return now
}

// closeSession sets the end state of a session. The end never moves before the last heartbeat.
func closeSession(session *models.StudySession, at time.Time, reason models.EndReason) {
	if at.Before(session.LastSeenAt) {
		at = session.LastSeenAt
	}
	session.LastSeenAt = at
	session.EndedAt = &at
	session.DurationSeconds = durationSeconds(session.StartedAt, at)
	session.EndReason = &reason
}

func durationSeconds(from, to time.Time) int64 {
	if !to.After(from) {
		return 0
	}
	return int64(to.Sub(from) / time.Second)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dailyTotals sums ended sessions per UTC day of their end time for the "days" days ending today, oldest first
func dailyTotals(sessions []models.StudySession, today time.Time, days int) []models.DailyTotal {
	first := today.AddDate(0, 0, -(days - 1))
	totals := make([]models.DailyTotal, days)
	for i := range totals {
		totals[i].Date = first.AddDate(0, 0, i).Format(time.DateOnly)
	}

	for _, session := range sessions {
		if session.EndedAt == nil {
			continue
		}
		day := startOfDay(*session.EndedAt)
		if day.Before(first) || day.After(today) {
			continue
		}
		idx := int(day.Sub(first) / (24 * time.Hour))
		totals[idx].Seconds += session.DurationSeconds
	}
	return totals
}

// computeStreak counts consecutive UTC days with an ended session, ending today or yesterday
func computeStreak(days []time.Time, today time.Time) int {
	seen := make(map[time.Time]bool, len(days))
	for _, d := range days {
		seen[startOfDay(d)] = true
	}

	day := startOfDay(today)
	if !seen[day] {
		day = day.AddDate(0, 0, -1)
		if !seen[day] {
			return 0
		}
	}

	streak := 0
	for seen[day] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
