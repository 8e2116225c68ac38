package services

import (
	"context"
	"errors"
	"time"

	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

// EnrollmentRepository is the interface that wraps methods for Enrollments table data access
type EnrollmentRepository interface {
	// Method Create inserts a new enrollment.
	//
	// A second enrollment of the same student in the same course fails with a wrapped models.ErrDuplicate.
	Create(ctx context.Context, e *models.Enrollment) error
	// Method GetByID retrieves an enrollment by ID.
	//
	// If enrollment with such ID does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByID(ctx context.Context, id int) (*models.Enrollment, error)
	// Method GetByStudentAndCourse retrieves the enrollment of "studentID" in "courseID".
	//
	// If the student is not enrolled, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByStudentAndCourse(ctx context.Context, studentID, courseID int) (*models.Enrollment, error)
	// Method ListByStudent retrieves the student's enrollments with a summary of each course.
	ListByStudent(ctx context.Context, studentID int) ([]models.Enrollment, error)
	// Method ListByCourse retrieves the enrollments of a course with a summary of each student.
	ListByCourse(ctx context.Context, courseID int) ([]models.Enrollment, error)
	// Method UpdateProgress stores recalculated progress and status.
	UpdateProgress(ctx context.Context, id int, progress models.Progress, status models.EnrollmentStatus, updatedAt time.Time) error
	// Method Delete removes an enrollment together with the student's completions in that course.
	//
	// If the enrollment is already gone, a wrapped models.ErrNotFound will be returned.
	Delete(ctx context.Context, e *models.Enrollment) error
}

// CompletionRepository is the interface that wraps methods for MaterialCompletions table data access
type CompletionRepository interface {
	// Method Create records that a student completed a material.
	//
	// It reports false when the completion was already recorded.
	Create(ctx context.Context, studentID, courseID, materialID int, completedAt time.Time) (bool, error)
	// Method ListMaterialIDs retrieves the IDs of the materials a student completed in a course.
	ListMaterialIDs(ctx context.Context, studentID, courseID int) ([]int, error)
	// Method CountByCourse counts the materials a student completed in a course.
	CountByCourse(ctx context.Context, studentID, courseID int) (int, error)
}

// MaterialCounter counts the materials of a course
type MaterialCounter interface {
	// Method CountByCourse counts the materials of a course.
	CountByCourse(ctx context.Context, courseID int) (int, error)
}

// StudyStatsProvider aggregates a student's study sessions
type StudyStatsProvider interface {
	// Method StatsFor returns the study statistics of "studentID" over the last "days" days.
	StatsFor(ctx context.Context, studentID, days int) (*models.StudyStats, error)
}

// progressTracker keeps stored enrollment progress in line with completions and course size
type progressTracker struct {
	enrollmentRepo EnrollmentRepository
	completionRepo CompletionRepository
	materialRepo   MaterialCounter
	logger         *zap.Logger
	now            Clock
}

// recalculate recomputes and stores the progress of one enrollment. The stored row is only written when it changes.
func (t *progressTracker) recalculate(ctx context.Context, e *models.Enrollment) error {
	completed, err := t.completionRepo.CountByCourse(ctx, e.StudentID, e.CourseID)
	if err != nil {
		return err
	}
	total, err := t.materialRepo.CountByCourse(ctx, e.CourseID)
	if err != nil {
		return err
	}

	progress, status := models.ComputeProgress(completed, total)
	if progress == e.Progress && status == e.Status {
		return nil
	}

	now := t.now()
	if err := t.enrollmentRepo.UpdateProgress(ctx, e.ID, progress, status, now); err != nil {
		return err
	}
	e.Progress = progress
	e.Status = status
	e.UpdatedAt = now
	return nil
}

// recalculateCourse recomputes the progress of every enrollment in a course.
// A failing enrollment is logged and the rest are still updated.
func (t *progressTracker) recalculateCourse(ctx context.Context, courseID int) error {
	enrollments, err := t.enrollmentRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return err
	}

	var errs []error
	for i := range enrollments {
		if err := t.recalculate(ctx, &enrollments[i]); err != nil {
			t.logger.Error("failed to recalculate progress",
				zap.Int("enrollmentId", enrollments[i].ID), zap.Int("courseId", courseID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type progressService struct {
	courseRepo CourseReader
	tracker    *progressTracker
	study      StudyStatsProvider
}

// NewProgressService creates a new progress service
func NewProgressService(
	courseRepo CourseReader,
	enrollmentRepo EnrollmentRepository,
	completionRepo CompletionRepository,
	materialRepo MaterialCounter,
	study StudyStatsProvider,
	logger *zap.Logger,
) *progressService {
	return &progressService{
		courseRepo: courseRepo,
		tracker: &progressTracker{
			enrollmentRepo: enrollmentRepo,
			completionRepo: completionRepo,
			materialRepo:   materialRepo,
			logger:         logger,
			now:            SystemClock,
		},
		study: study,
	}
}

// Overview returns the dashboard summary of a student
func (s *progressService) Overview(ctx context.Context, actor models.Actor) (*models.ProgressOverview, error) {
	enrollments, err := s.tracker.enrollmentRepo.ListByStudent(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	overview := &models.ProgressOverview{
		Courses:         make([]models.CourseProgress, 0, len(enrollments)),
		CoursesEnrolled: len(enrollments),
	}
	sum := 0
	for _, e := range enrollments {
		total, err := s.tracker.materialRepo.CountByCourse(ctx, e.CourseID)
		if err != nil {
			return nil, err
		}
		cp := courseProgress(&e, total)
		if e.Course != nil {
			cp.CourseTitle = e.Course.Title
		}
		overview.Courses = append(overview.Courses, cp)

		sum += e.Progress.Percentage
		if e.Status == models.EnrollmentCompleted {
			overview.CoursesCompleted++
		}
	}
	if len(enrollments) > 0 {
		overview.AveragePercentage = (sum + len(enrollments)/2) / len(enrollments)
	}

	stats, err := s.study.StatsFor(ctx, actor.UserID, DefaultStatsDays)
	if err != nil {
		return nil, err
	}
	overview.Study = stats

	return overview, nil
}

// Course returns the caller's progress in one course with the completed material IDs
func (s *progressService) Course(ctx context.Context, actor models.Actor, courseID int) (*models.CourseProgress, error) {
	e, err := s.tracker.enrollmentRepo.GetByStudentAndCourse(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, mapRepoError(err, "enrollment")
	}
	course, err := loadCourse(ctx, s.courseRepo, courseID)
	if err != nil {
		return nil, err
	}

	total, err := s.tracker.materialRepo.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	completedIDs, err := s.tracker.completionRepo.ListMaterialIDs(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}

	cp := courseProgress(e, total)
	cp.CourseTitle = course.Title
	cp.CompletedMaterialIDs = completedIDs
	return &cp, nil
}

// Students returns per-student progress of a course for its owner
func (s *progressService) Students(ctx context.Context, actor models.Actor, courseID int) ([]models.StudentProgress, error) {
	if _, err := loadManagedCourse(ctx, s.courseRepo, actor, courseID); err != nil {
		return nil, err
	}

	enrollments, err := s.tracker.enrollmentRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	students := make([]models.StudentProgress, 0, len(enrollments))
	for _, e := range enrollments {
		sp := models.StudentProgress{
			Status:           e.Status,
			Percentage:       e.Progress.Percentage,
			LessonsCompleted: e.Progress.LessonsCompleted,
			EnrolledAt:       e.EnrolledAt,
		}
		if e.Student != nil {
			sp.Student = *e.Student
		} else {
			sp.Student = models.StudentSummary{ID: e.StudentID}
		}
		students = append(students, sp)
	}
	return students, nil
}

func courseProgress(e *models.Enrollment, total int) models.CourseProgress {
	return models.CourseProgress{
		EnrollmentID:     e.ID,
		CourseID:         e.CourseID,
		Status:           e.Status,
		Percentage:       models.ClampPercentage(e.Progress.Percentage),
		LessonsCompleted: e.Progress.LessonsCompleted,
		TotalMaterials:   total,
	}
}
