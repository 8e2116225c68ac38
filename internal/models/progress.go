package models

import "time"

// CourseProgress is a student's progress in one course
type CourseProgress struct {
	EnrollmentID         int              `json:"enrollmentId"`
	CourseID             int              `json:"courseId"`
	CourseTitle          string           `json:"courseTitle"`
	Status               EnrollmentStatus `json:"status"`
	Percentage           int              `json:"percentage"`
	LessonsCompleted     int              `json:"lessonsCompleted"`
	TotalMaterials       int              `json:"totalMaterials"`
	CompletedMaterialIDs []int            `json:"completedMaterialIds,omitempty"`
}

// ProgressOverview is a student's dashboard summary
type ProgressOverview struct {
	Courses           []CourseProgress `json:"courses"`
	CoursesEnrolled   int              `json:"coursesEnrolled"`
	CoursesCompleted  int              `json:"coursesCompleted"`
	AveragePercentage int              `json:"averagePercentage"`
	Study             *StudyStats      `json:"study"`
}

// StudentProgress is one student's row in a course analytics view
type StudentProgress struct {
	Student          StudentSummary   `json:"student"`
	Status           EnrollmentStatus `json:"status"`
	Percentage       int              `json:"percentage"`
	LessonsCompleted int              `json:"lessonsCompleted"`
	EnrolledAt       time.Time        `json:"enrolledAt"`
}
