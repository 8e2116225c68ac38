package models

import "time"

// EnrollmentStatus is the state of an enrollment
type EnrollmentStatus string

// EnrollmentStatus constants
const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Progress is the progress state carried by an enrollment
type Progress struct {
	Percentage       int `json:"percentage"`
	LessonsCompleted int `json:"lessonsCompleted"`
}

// Enrollment associates a student with a course
type Enrollment struct {
	ID         int              `json:"id"`
	StudentID  int              `json:"studentId"`
	CourseID   int              `json:"courseId"`
	Status     EnrollmentStatus `json:"status"`
	Progress   Progress         `json:"progress"`
	EnrolledAt time.Time        `json:"enrolledAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	Course     *CourseSummary   `json:"course,omitempty"`
	Student    *StudentSummary  `json:"student,omitempty"`
}

// EnrollRequest represents an enrollment request
type EnrollRequest struct {
	CourseID int `json:"courseId" validate:"required,min=1"`
}

// ComputeProgress derives the stored progress from completed and total material counts.
// The percentage is rounded and clamped to [0, 100]; a course without materials is at 0.
func ComputeProgress(completed, total int) (Progress, EnrollmentStatus) {
	if completed < 0 {
		completed = 0
	}
	if total <= 0 {
		return Progress{Percentage: 0, LessonsCompleted: completed}, EnrollmentActive
	}

	pct := ClampPercentage((completed*100 + total/2) / total)
	status := EnrollmentActive
	if pct == 100 {
		status = EnrollmentCompleted
	}
	return Progress{Percentage: pct, LessonsCompleted: completed}, status
}

// ClampPercentage limits p to [0, 100]
func ClampPercentage(p int) int {
	return min(max(p, 0), 100)
}
