package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/learnsy/backend/internal/access"
	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/storage"
	"go.uber.org/zap"
)

// MaterialRepository is the interface that wraps methods for Materials table data access
type MaterialRepository interface {
	// Method NextPosition returns the position after the last material of a course.
	NextPosition(ctx context.Context, courseID int) (int, error)
	// Method Create inserts a new material.
	//
	// "m" parameter receives the new ID on success.
	Create(ctx context.Context, m *models.Material) error
	// Method GetByID retrieves a material by ID.
	//
	// If material with such ID does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByID(ctx context.Context, id int) (*models.Material, error)
	// Method ListByCourse retrieves the materials of a course ordered by position, then ID.
	ListByCourse(ctx context.Context, courseID int) ([]models.Material, error)
	// Method Update stores the title, description and position of a material.
	Update(ctx context.Context, m *models.Material) error
	// Method Delete deletes a material and its completions.
	//
	// If material with such ID does not exist, a wrapped models.ErrNotFound will be returned.
	Delete(ctx context.Context, id int) error
	// Method CountByCourse counts the materials of a course.
	CountByCourse(ctx context.Context, courseID int) (int, error)
}

// MaterialUpload is a validated upload together with its optional file
type MaterialUpload struct {
	models.UploadMaterialRequest
	File        io.Reader
	FileName    string
	ContentType string
	// Size is the declared file size or -1 when unknown
	Size int64
}

type materialService struct {
	courseRepo       CourseReader
	materialRepo     MaterialRepository
	subscriptionRepo SubscriptionReader
	tracker          *progressTracker
	storage          Storage
	logger           *zap.Logger
	mediaBaseURL     string
	now              Clock
}

// NewMaterialService creates a new material service
func NewMaterialService(
	courseRepo CourseReader,
	materialRepo MaterialRepository,
	enrollmentRepo EnrollmentRepository,
	completionRepo CompletionRepository,
	subscriptionRepo SubscriptionReader,
	storage Storage,
	logger *zap.Logger,
	mediaBaseURL string,
) *materialService {
	return &materialService{
		courseRepo:       courseRepo,
		materialRepo:     materialRepo,
		subscriptionRepo: subscriptionRepo,
		tracker: &progressTracker{
			enrollmentRepo: enrollmentRepo,
			completionRepo: completionRepo,
			materialRepo:   materialRepo,
			logger:         logger,
			now:            SystemClock,
		},
		storage:      storage,
		logger:       logger,
		mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
		now:          SystemClock,
	}
}

// courseAccess describes what the caller may do with the materials of one course
type courseAccess struct {
	course     *models.Course
	manage     bool
	enrollment *models.Enrollment
	tier       models.Tier
}

// accessFor resolves the caller's access to a course's materials.
// Owners and admins manage it, students need an enrollment, other callers are rejected.
func (s *materialService) accessFor(ctx context.Context, actor models.Actor, courseID int) (*courseAccess, error) {
	course, err := loadCourse(ctx, s.courseRepo, courseID)
	if err != nil {
		return nil, err
	}
	if canManage(actor, course) {
		return &courseAccess{course: course, manage: true, tier: models.TierPremium}, nil
	}
	if !course.Published {
		return nil, notFound("course")
	}
	if !actor.IsStudent() {
		return nil, forbidden("only enrolled students can access course materials")
	}

	enrollment, err := s.tracker.enrollmentRepo.GetByStudentAndCourse(ctx, actor.UserID, courseID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, forbidden("enroll in the course to access its materials")
		}
		return nil, err
	}

	tier, err := resolveTier(ctx, s.subscriptionRepo, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}

	return &courseAccess{course: course, enrollment: enrollment, tier: tier}, nil
}

// views builds the caller's view of the ordered materials of a course
func (s *materialService) views(ctx context.Context, actor models.Actor, ca *courseAccess, materials []models.Material) ([]models.MaterialView, error) {
	locked := access.Locked(materials, ca.tier)

	completed := make(map[int]bool)
	if ca.enrollment != nil {
		ids, err := s.tracker.completionRepo.ListMaterialIDs(ctx, actor.UserID, ca.course.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			completed[id] = true
		}
	}

	result := make([]models.MaterialView, 0, len(materials))
	for i, m := range materials {
		view := models.MaterialView{
			Material:  m,
			Locked:    !ca.manage && locked[i],
			Completed: completed[m.ID],
		}
		if !view.Locked {
			view.URL = s.materialURL(&m)
		}
		result = append(result, view)
	}
	return result, nil
}

// materialURL returns the link the frontend opens for a material
func (s *materialService) materialURL(m *models.Material) string {
	if m.Type == models.MaterialLink || !m.HasFile() {
		return m.ExternalURL
	}
	return fmt.Sprintf("%s/api/materials/%d/download", s.mediaBaseURL, m.ID)
}

// viewOf finds one material in its course and returns the caller's view of it
func (s *materialService) viewOf(ctx context.Context, actor models.Actor, id int) (*courseAccess, *models.MaterialView, error) {
	material, err := s.materialRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, mapRepoError(err, "material")
	}

	ca, err := s.accessFor(ctx, actor, material.CourseID)
	if err != nil {
		return nil, nil, err
	}

	materials, err := s.materialRepo.ListByCourse(ctx, material.CourseID)
	if err != nil {
		return nil, nil, err
	}
	views, err := s.views(ctx, actor, ca, materials)
	if err != nil {
		return nil, nil, err
	}
	for i := range views {
		if views[i].ID == id {
			return ca, &views[i], nil
		}
	}
	return nil, nil, notFound("material")
}

// Upload stores a new material at the end of its course. File materials are written to storage first.
func (s *materialService) Upload(ctx context.Context, actor models.Actor, upload *MaterialUpload) (*models.Material, error) {
	course, err := loadManagedCourse(ctx, s.courseRepo, actor, upload.CourseID)
	if err != nil {
		return nil, err
	}
	if !upload.Type.Valid() {
		return nil, invalidInput("invalid material type %q", upload.Type)
	}

	material := &models.Material{
		CourseID:    course.ID,
		Title:       strings.TrimSpace(upload.Title),
		Description: strings.TrimSpace(upload.Description),
		Type:        upload.Type,
		CreatedAt:   s.now(),
	}

	if upload.Type == models.MaterialLink {
		if strings.TrimSpace(upload.URL) == "" {
			return nil, invalidInput("url is required for link materials")
		}
		material.ExternalURL = strings.TrimSpace(upload.URL)
	} else {
		if upload.File == nil {
			return nil, invalidInput("file is required")
		}
		key := storage.MaterialKey(course.ID, upload.FileName)
		size, err := s.storage.Put(ctx, key, upload.File, upload.Size, upload.ContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to store material file: %w", err)
		}
		material.StorageKey = key
		material.FileName = upload.FileName
		material.ContentType = upload.ContentType
		material.Size = size
	}

	position, err := s.materialRepo.NextPosition(ctx, course.ID)
	if err != nil {
		s.removeObject(ctx, material.StorageKey)
		return nil, err
	}
	material.Position = position

	if err := s.materialRepo.Create(ctx, material); err != nil {
		s.removeObject(ctx, material.StorageKey)
		return nil, err
	}
	material.URL = s.materialURL(material)

	// A new material lowers everyone's percentage
	if err := s.tracker.recalculateCourse(ctx, course.ID); err != nil {
		s.logger.Warn("progress recalculation incomplete", zap.Int("courseId", course.ID), zap.Error(err))
	}

	return material, nil
}

// ListByCourse returns the ordered materials of a course as seen by the caller
func (s *materialService) ListByCourse(ctx context.Context, actor models.Actor, courseID int) ([]models.MaterialView, error) {
	ca, err := s.accessFor(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	materials, err := s.materialRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, actor, ca, materials)
}

// Get returns one material as seen by the caller
func (s *materialService) Get(ctx context.Context, actor models.Actor, id int) (*models.MaterialView, error) {
	_, view, err := s.viewOf(ctx, actor, id)
	return view, err
}

// Open returns the stored file of a material the caller may access. The caller closes the reader.
func (s *materialService) Open(ctx context.Context, actor models.Actor, id int) (*models.Material, io.ReadCloser, error) {
	_, view, err := s.viewOf(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if view.Locked {
		return nil, nil, forbidden("upgrade to premium to access this material")
	}
	if !view.HasFile() {
		return nil, nil, invalidInput("link materials have no file")
	}

	rc, err := s.storage.Open(ctx, view.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, notFound("material file")
		}
		return nil, nil, fmt.Errorf("failed to open material file: %w", err)
	}
	return &view.Material, rc, nil
}

// Update changes the title, description or position of a material
func (s *materialService) Update(ctx context.Context, actor models.Actor, id int, req *models.UpdateMaterialRequest) (*models.Material, error) {
	material, err := s.materialRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "material")
	}
	if _, err := loadManagedCourse(ctx, s.courseRepo, actor, material.CourseID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		material.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		material.Description = strings.TrimSpace(*req.Description)
	}
	if req.Position != nil {
		if *req.Position < 0 {
			return nil, invalidInput("position cannot be negative")
		}
		material.Position = *req.Position
	}

	if err := s.materialRepo.Update(ctx, material); err != nil {
		return nil, err
	}
	material.URL = s.materialURL(material)
	return material, nil
}

// Delete removes a material and its stored file
func (s *materialService) Delete(ctx context.Context, actor models.Actor, id int) error {
	material, err := s.materialRepo.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "material")
	}
	if _, err := loadManagedCourse(ctx, s.courseRepo, actor, material.CourseID); err != nil {
		return err
	}

	if err := s.materialRepo.Delete(ctx, id); err != nil {
		return mapRepoError(err, "material")
	}
	s.removeObject(ctx, material.StorageKey)

	if err := s.tracker.recalculateCourse(ctx, material.CourseID); err != nil {
		s.logger.Warn("progress recalculation incomplete", zap.Int("courseId", material.CourseID), zap.Error(err))
	}
	return nil
}

// Complete records that the calling student finished a material and returns the updated enrollment
func (s *materialService) Complete(ctx context.Context, actor models.Actor, id int) (*models.Enrollment, error) {
	if !actor.IsStudent() {
		return nil, forbidden("only students can complete materials")
	}

	ca, view, err := s.viewOf(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if view.Locked {
		return nil, forbidden("upgrade to premium to access this material")
	}

	if !view.Completed {
		if _, err := s.tracker.completionRepo.Create(ctx, actor.UserID, view.CourseID, view.ID, s.now()); err != nil {
			return nil, err
		}
	}

	if err := s.tracker.recalculate(ctx, ca.enrollment); err != nil {
		return nil, err
	}
	return ca.enrollment, nil
}

// removeObject deletes a stored file, logging failures
func (s *materialService) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("failed to delete material file", zap.String("key", key), zap.Error(err))
	}
}
