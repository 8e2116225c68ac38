// Package services holds the business rules of the platform. Services depend on repository interfaces
// declared next to them, never on the database directly.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/tasks"
)

// Clock returns the current time. Services call it once per operation.
type Clock func() time.Time

// SystemClock returns the current time in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

// TaskEnqueuer defines the background tasks services may queue
type TaskEnqueuer interface {
	// Method EnqueueEmail queues an email for the worker.
	//
	// Failures are not fatal for the caller, services log them and carry on.
	EnqueueEmail(ctx context.Context, p tasks.EmailPayload) error
	// Method EnqueuePaymentVerification queues verification of a pending payment.
	//
	// "delay" is how long the worker waits before processing the task.
	EnqueuePaymentVerification(ctx context.Context, paymentID string, delay time.Duration) error
}

// Storage defines the interface for material file storage
type Storage interface {
	// Method Put stores the content of "r" under "key".
	//
	// "size" is the expected length or -1 when unknown. The number of stored bytes is returned.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	// Method Open returns a reader for the object stored under "key".
	//
	// storage.ErrObjectNotFound is returned when there is no such object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Method Delete removes the object stored under "key". Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// SubscriptionReader is the part of subscription data access needed to resolve a student's tier
type SubscriptionReader interface {
	// Method GetByStudent retrieves the student's subscription.
	//
	// A wrapped models.ErrNotFound is returned when the student has no stored subscription.
	GetByStudent(ctx context.Context, studentID int) (*models.Subscription, error)
}

// CourseReader is the part of course data access shared by services that check course ownership
type CourseReader interface {
	// Method GetByID retrieves a course with its modules.
	//
	// A wrapped models.ErrNotFound is returned when the course does not exist.
	GetByID(ctx context.Context, id int) (*models.Course, error)
}

// canManage reports whether actor may change the course
func canManage(actor models.Actor, course *models.Course) bool {
	return actor.IsAdmin() || (actor.Role == models.RoleFaculty && course.FacultyID == actor.UserID)
}

// loadCourse fetches a course and translates a missing row into ErrNotFound
func loadCourse(ctx context.Context, repo CourseReader, id int) (*models.Course, error) {
	course, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "course")
	}
	return course, nil
}

// loadManagedCourse fetches a course the actor must be able to change.
// Unpublished courses of other faculty look missing, published ones are forbidden.
func loadManagedCourse(ctx context.Context, repo CourseReader, actor models.Actor, id int) (*models.Course, error) {
	course, err := loadCourse(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, course) {
		if !course.Published {
			return nil, notFound("course")
		}
		return nil, forbidden("only the course owner can do this")
	}
	return course, nil
}

// resolveTier returns the effective tier of a student. A student without a stored subscription is on the free tier.
func resolveTier(ctx context.Context, repo SubscriptionReader, studentID int, now time.Time) (models.Tier, error) {
	sub, err := repo.GetByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.TierFree, nil
		}
		return models.TierFree, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub.EffectiveTier(now), nil
}
