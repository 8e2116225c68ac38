package services

import (
	"context"
	"strings"
	"time"

	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

// CourseRepository is the interface that wraps methods for Courses table data access
type CourseRepository interface {
	// Method Create inserts a course together with its modules.
	//
	// "course" parameter receives the new ID, module IDs and positions on success.
	Create(ctx context.Context, course *models.Course) error
	// Method GetByID retrieves a course with its modules.
	//
	// If course with such ID does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByID(ctx context.Context, id int) (*models.Course, error)
	// Method List retrieves published courses matching "filter", newest first.
	//
	// "filter" parameter carries optional category, level and search filters and the page to read.
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	// Method ListByFaculty retrieves every course owned by "facultyID", published or not.
	ListByFaculty(ctx context.Context, facultyID int) ([]models.Course, error)
	// Method Update stores the editable fields of a course.
	//
	// When "replaceModules" is true the stored modules are replaced by course.Modules in the given order.
	Update(ctx context.Context, course *models.Course, replaceModules bool) error
	// Method SetPublished sets the published flag of a course.
	SetPublished(ctx context.Context, id int, published bool, updatedAt time.Time) error
	// Method Delete deletes a course and everything that belongs to it.
	//
	// If course with such ID does not exist, a wrapped models.ErrNotFound will be returned.
	Delete(ctx context.Context, id int) error
}

// CourseStorageKeyLister lists the stored files of a course so they can be removed with it
type CourseStorageKeyLister interface {
	// Method ListStorageKeysByCourse retrieves the storage keys of every file material of a course.
	ListStorageKeysByCourse(ctx context.Context, courseID int) ([]string, error)
}

// Catalog paging limits
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type courseService struct {
	courseRepo CourseRepository
	keyLister  CourseStorageKeyLister
	storage    Storage
	logger     *zap.Logger
	now        Clock
}

// NewCourseService creates a new course service
func NewCourseService(courseRepo CourseRepository, keyLister CourseStorageKeyLister, storage Storage, logger *zap.Logger) *courseService {
	return &courseService{
		courseRepo: courseRepo,
		keyLister:  keyLister,
		storage:    storage,
		logger:     logger,
		now:        SystemClock,
	}
}

// List returns a page of the published catalog
func (s *courseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Count < 1 {
		filter.Count = DefaultPageSize
	}
	if filter.Count > MaxPageSize {
		filter.Count = MaxPageSize
	}
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Level != nil && !validLevel(*filter.Level) {
		return nil, invalidInput("invalid level %q", *filter.Level)
	}

	return s.courseRepo.List(ctx, filter)
}

// Get returns a course with its modules. Unpublished courses are only visible to their owner and admins.
func (s *courseService) Get(ctx context.Context, actor models.Actor, id int) (*models.Course, error) {
	course, err := loadCourse(ctx, s.courseRepo, id)
	if err != nil {
		return nil, err
	}
	if !course.Published && !canManage(actor, course) {
		return nil, notFound("course")
	}
	return course, nil
}

// Mine returns the courses owned by the calling faculty member
func (s *courseService) Mine(ctx context.Context, actor models.Actor) ([]models.Course, error) {
	return s.courseRepo.ListByFaculty(ctx, actor.UserID)
}

// Create stores a new unpublished course owned by the actor
func (s *courseService) Create(ctx context.Context, actor models.Actor, req *models.CreateCourseRequest) (*models.Course, error) {
	if actor.Role != models.RoleFaculty && !actor.IsAdmin() {
		return nil, forbidden("only faculty can create courses")
	}
	if !validLevel(req.Level) {
		return nil, invalidInput("invalid level %q", req.Level)
	}

	now := s.now()
	course := &models.Course{
		FacultyID:   actor.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Level:       req.Level,
		Duration:    strings.TrimSpace(req.Duration),
		Published:   false,
		Modules:     buildModules(req.Modules),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// Update changes the fields present in req. Modules, when present, replace the syllabus in the given order.
func (s *courseService) Update(ctx context.Context, actor models.Actor, id int, req *models.UpdateCourseRequest) (*models.Course, error) {
	course, err := loadManagedCourse(ctx, s.courseRepo, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		course.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		course.Category = strings.TrimSpace(*req.Category)
	}
	if req.Level != nil {
		if !validLevel(*req.Level) {
			return nil, invalidInput("invalid level %q", *req.Level)
		}
		course.Level = *req.Level
	}
	if req.Duration != nil {
		course.Duration = strings.TrimSpace(*req.Duration)
	}
	replaceModules := req.Modules != nil
	if replaceModules {
		course.Modules = buildModules(*req.Modules)
	}
	course.UpdatedAt = s.now()

	if err := s.courseRepo.Update(ctx, course, replaceModules); err != nil {
		return nil, err
	}
	return course, nil
}

// SetPublished publishes or unpublishes a course. Setting the current state again changes nothing.
func (s *courseService) SetPublished(ctx context.Context, actor models.Actor, id int, published bool) (*models.Course, error) {
	course, err := loadManagedCourse(ctx, s.courseRepo, actor, id)
	if err != nil {
		return nil, err
	}
	if course.Published == published {
		return course, nil
	}

	now := s.now()
	if err := s.courseRepo.SetPublished(ctx, id, published, now); err != nil {
		return nil, err
	}
	course.Published = published
	course.UpdatedAt = now
	return course, nil
}

// Delete removes a course with everything that cascades from it. Stored files are removed afterwards, best-effort.
func (s *courseService) Delete(ctx context.Context, actor models.Actor, id int) error {
	if _, err := loadManagedCourse(ctx, s.courseRepo, actor, id); err != nil {
		return err
	}

	keys, err := s.keyLister.ListStorageKeysByCourse(ctx, id)
	if err != nil {
		return err
	}

	if err := s.courseRepo.Delete(ctx, id); err != nil {
		return mapRepoError(err, "course")
	}

	if len(keys) > 0 {
		bg := context.WithoutCancel(ctx)
		go func() {
			for _, key := range keys {
				if err := s.storage.Delete(bg, key); err != nil {
					s.logger.Warn("failed to delete material file", zap.Int("courseId", id), zap.String("key", key), zap.Error(err))
				}
			}
		}()
	}
	return nil
}

func validLevel(l models.Level) bool {
	switch l {
	case models.LevelBeginner, models.LevelIntermediate, models.LevelAdvanced:
		return true
	}
	return false
}

// buildModules converts request modules into ordered course modules
func buildModules(reqs []models.ModuleRequest) []models.CourseModule {
	modules := make([]models.CourseModule, 0, len(reqs))
	for i, m := range reqs {
		modules = append(modules, models.CourseModule{
			Position:    i,
			Title:       strings.TrimSpace(m.Title),
			Description: strings.TrimSpace(m.Description),
			Duration:    strings.TrimSpace(m.Duration),
		})
	}
	return modules
}
