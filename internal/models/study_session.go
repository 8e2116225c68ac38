package models

import "time"

// Activity is what a student is doing during a study session
type Activity string

// Activity constants
const (
	ActivityBrowsing Activity = "browsing"
	ActivityReading  Activity = "reading"
	ActivityWatching Activity = "watching"
	ActivityQuiz     Activity = "quiz"
	ActivityIdle     Activity = "idle"
)

// Valid reports whether a is a known activity
func (a Activity) Valid() bool {
	switch a {
	case ActivityBrowsing, ActivityReading, ActivityWatching, ActivityQuiz, ActivityIdle:
		return true
	}
	return false
}

// EndReason records why a session was closed
type EndReason string

// EndReason constants
const (
	EndReasonEnded      EndReason = "ended"
	EndReasonIdle       EndReason = "idle"
	EndReasonSuperseded EndReason = "superseded"
	EndReasonSwept      EndReason = "swept"
)

// StudySession is a timed window of student activity.
// DurationSeconds always equals LastSeenAt - StartedAt, so it only grows while open and is frozen once EndedAt is set.
type StudySession struct {
	ID              int        `json:"id"`
	StudentID       int        `json:"studentId"`
	CourseID        *int       `json:"courseId,omitempty"`
	Activity        Activity   `json:"activity"`
	StartedAt       time.Time  `json:"startedAt"`
	LastSeenAt      time.Time  `json:"lastSeenAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds int64      `json:"durationSeconds"`
	EndReason       *EndReason `json:"endReason,omitempty"`
}

// IsOpen reports whether the session has not been closed
func (s *StudySession) IsOpen() bool {
	return s.EndedAt == nil
}

// StartSessionRequest opens a study session
type StartSessionRequest struct {
	CourseID *int     `json:"courseId,omitempty" validate:"omitempty,min=1"`
	Activity Activity `json:"activity,omitempty" validate:"omitempty,oneof=browsing reading watching quiz idle"`
}

// PingRequest keeps a study session alive, optionally changing its activity
type PingRequest struct {
	Activity Activity `json:"activity,omitempty" validate:"omitempty,oneof=browsing reading watching quiz idle"`
}

// DailyTotal is the study time of one UTC day
type DailyTotal struct {
	Date    string `json:"date"`
	Seconds int64  `json:"seconds"`
}

// StudyStats aggregates a student's closed sessions
type StudyStats struct {
	Days         []DailyTotal `json:"days"`
	TodaySeconds int64        `json:"todaySeconds"`
	WeekSeconds  int64        `json:"weekSeconds"`
	TotalSeconds int64        `json:"totalSeconds"`
	StreakDays   int          `json:"streakDays"`
}
