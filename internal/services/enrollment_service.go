package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/tasks"
	"go.uber.org/zap"
)

// UserReader retrieves users for notifications
type UserReader interface {
	// Method GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int) (*models.User, error)
}

type enrollmentService struct {
	courseRepo     CourseReader
	enrollmentRepo EnrollmentRepository
	userRepo       UserReader
	tasks          TaskEnqueuer
	logger         *zap.Logger
	now            Clock
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	courseRepo CourseReader,
	enrollmentRepo EnrollmentRepository,
	userRepo UserReader,
	tasks TaskEnqueuer,
	logger *zap.Logger,
) *enrollmentService {
	return &enrollmentService{
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		tasks:          tasks,
		logger:         logger,
		now:            SystemClock,
	}
}

// Enroll enrolls the calling student in a published course. Enrolling twice is a conflict.
func (s *enrollmentService) Enroll(ctx context.Context, actor models.Actor, courseID int) (*models.Enrollment, error) {
	if !actor.IsStudent() {
		return nil, forbidden("only students can enroll")
	}

	course, err := loadCourse(ctx, s.courseRepo, courseID)
	if err != nil {
		return nil, err
	}
	if !course.Published {
		return nil, notFound("course")
	}

	now := s.now()
	enrollment := &models.Enrollment{
		StudentID:  actor.UserID,
		CourseID:   course.ID,
		Status:     models.EnrollmentActive,
		Progress:   models.Progress{Percentage: 0, LessonsCompleted: 0},
		EnrolledAt: now,
		UpdatedAt:  now,
		Course: &models.CourseSummary{
			ID:       course.ID,
			Title:    course.Title,
			Category: course.Category,
			Level:    course.Level,
		},
	}
	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, fmt.Errorf("already enrolled in this course: %w", ErrConflict)
		}
		return nil, err
	}

	s.sendEnrollmentEmail(context.WithoutCancel(ctx), actor.UserID, course.Title)

	return enrollment, nil
}

func (s *enrollmentService) sendEnrollmentEmail(ctx context.Context, studentID int, courseTitle string) {
	user, err := s.userRepo.GetByID(ctx, studentID)
	if err != nil {
		s.logger.Warn("failed to load student for enrollment email", zap.Int("userId", studentID), zap.Error(err))
		return
	}
	if err := s.tasks.EnqueueEmail(ctx, tasks.EnrollmentEmail(user.Email, user.Name, courseTitle)); err != nil {
		s.logger.Warn("failed to queue enrollment email", zap.Int("userId", studentID), zap.Error(err))
	}
}

// Mine returns the calling student's enrollments
func (s *enrollmentService) Mine(ctx context.Context, actor models.Actor) ([]models.Enrollment, error) {
	return s.enrollmentRepo.ListByStudent(ctx, actor.UserID)
}

// ByCourse returns the enrollments of a course for its owner
func (s *enrollmentService) ByCourse(ctx context.Context, actor models.Actor, courseID int) ([]models.Enrollment, error) {
	if _, err := loadManagedCourse(ctx, s.courseRepo, actor, courseID); err != nil {
		return nil, err
	}
	return s.enrollmentRepo.ListByCourse(ctx, courseID)
}

// Unenroll deletes an enrollment of the calling student together with its completions
func (s *enrollmentService) Unenroll(ctx context.Context, actor models.Actor, id int) error {
	enrollment, err := s.enrollmentRepo.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "enrollment")
	}
	if enrollment.StudentID != actor.UserID && !actor.IsAdmin() {
		return notFound("enrollment")
	}

	return mapRepoError(s.enrollmentRepo.Delete(ctx, enrollment), "enrollment")
}
