package models

import "time"

// MaterialType is the kind of a course material
type MaterialType string

// MaterialType constants
const (
	MaterialVideo      MaterialType = "video"
	MaterialText       MaterialType = "text"
	MaterialPDF        MaterialType = "pdf"
	MaterialImage      MaterialType = "image"
	MaterialLink       MaterialType = "link"
	MaterialQuiz       MaterialType = "quiz"
	MaterialAssignment MaterialType = "assignment"
)

// Valid reports whether t is a known material type
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialVideo, MaterialText, MaterialPDF, MaterialImage, MaterialLink, MaterialQuiz, MaterialAssignment:
		return true
	}
	return false
}

// Material is a single piece of course content.
// File materials keep a storage key; link materials keep an external URL.
type Material struct {
	ID          int          `json:"id"`
	CourseID    int          `json:"courseId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        MaterialType `json:"type"`
	StorageKey  string       `json:"-"`
	ExternalURL string       `json:"-"`
	URL         string       `json:"url,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
	Size        int64        `json:"size"`
	Position    int          `json:"position"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// HasFile reports whether the material is backed by a stored file
func (m *Material) HasFile() bool {
	return m.StorageKey != ""
}

// MaterialView is a material as seen by a particular user
type MaterialView struct {
	Material
	Locked    bool `json:"locked"`
	Completed bool `json:"completed"`
}

// UploadMaterialRequest holds the form fields of a material upload
type UploadMaterialRequest struct {
	CourseID    int          `form:"courseId" validate:"required,min=1"`
	Title       string       `form:"title" validate:"required,notblank,max=200"`
	Description string       `form:"description" validate:"max=2000"`
	Type        MaterialType `form:"type" validate:"required,oneof=video text pdf image link quiz assignment"`
	URL         string       `form:"url" validate:"omitempty,url,max=2048"`
}

// UpdateMaterialRequest represents a partial material update
type UpdateMaterialRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Position    *int    `json:"position,omitempty" validate:"omitempty,min=0"`
}
