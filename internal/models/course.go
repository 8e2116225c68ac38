package models

import "time"

// Level is the difficulty of a course
type Level string

// Level constants
const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Course represents a course owned by a faculty member
type Course struct {
	ID            int            `json:"id"`
	FacultyID     int            `json:"facultyId"`
	FacultyName   string         `json:"facultyName,omitempty"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Level         Level          `json:"level"`
	Duration      string         `json:"duration"`
	Published     bool           `json:"published"`
	MaterialCount int            `json:"materialCount"`
	Modules       []CourseModule `json:"modules,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// CourseModule is one entry of a course's ordered syllabus
type CourseModule struct {
	ID          int    `json:"id"`
	CourseID    int    `json:"courseId"`
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
}

// CourseSummary is the part of a course embedded in enrollment listings
type CourseSummary struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Level    Level  `json:"level"`
}

// CourseFilter holds catalog query parameters
type CourseFilter struct {
	Category string
	Level    *Level
	Search   string
	Page     int
	Count    int
}

// ModuleRequest describes one module in a create or update request
type ModuleRequest struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Duration    string `json:"duration" validate:"max=50"`
}

// CreateCourseRequest represents a course creation request
type CreateCourseRequest struct {
	Title       string          `json:"title" validate:"required,notblank,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Category    string          `json:"category" validate:"required,notblank,max=100"`
	Level       Level           `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Duration    string          `json:"duration" validate:"max=50"`
	Modules     []ModuleRequest `json:"modules" validate:"max=100,dive"`
}

// UpdateCourseRequest represents a partial course update. Modules, when present, replace the syllabus.
type UpdateCourseRequest struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,notblank,max=100"`
	Level       *Level           `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Duration    *string          `json:"duration,omitempty" validate:"omitempty,max=50"`
	Modules     *[]ModuleRequest `json:"modules,omitempty" validate:"omitempty,max=100,dive"`
}

// PublishRequest sets the published flag
type PublishRequest struct {
	Published *bool `json:"published" validate:"required"`
}
