package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

type subscriptionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *sql.DB, logger *zap.Logger) *subscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

const selectSubscriptionQuery = `
	SELECT id, student_id, plan_id, tier, status, started_at, expires_at
	FROM subscriptions
	WHERE student_id = ?
	LIMIT 1
`

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getSubscription reads the student's subscription, appending "suffix" (such as FOR UPDATE) to the query
func getSubscription(ctx context.Context, db rowQuerier, studentID int, suffix string) (*models.Subscription, error) {
	var (
		sub       models.Subscription
		planID    sql.NullInt64
		expiresAt sql.NullTime
	)
	err := db.QueryRowContext(ctx, selectSubscriptionQuery+suffix, studentID).Scan(
		&sub.ID,
		&sub.StudentID,
		&planID,
		&sub.Tier,
		&sub.Status,
		&sub.StartedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	sub.PlanID = intPtr(planID)
	sub.StartedAt = sub.StartedAt.UTC()
	sub.ExpiresAt = timePtr(expiresAt)
	return &sub, nil
}

// GetByStudent retrieves the student's subscription
func (r *subscriptionRepository) GetByStudent(ctx context.Context, studentID int) (*models.Subscription, error) {
	sub, err := getSubscription(ctx, r.db, studentID, "")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("subscription")
	}
	if err != nil {
		r.logger.Error("failed to get subscription", zap.Error(err), zap.Int("studentId", studentID))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

const upsertSubscriptionQuery = `
	INSERT INTO subscriptions (student_id, plan_id, tier, status, started_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		plan_id = VALUES(plan_id),
		tier = VALUES(tier),
		status = VALUES(status),
		started_at = VALUES(started_at),
		expires_at = VALUES(expires_at)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSubscription(ctx context.Context, db execer, sub *models.Subscription) error {
	var expiresAt sql.NullTime
	if sub.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *sub.ExpiresAt, Valid: true}
	}
	_, err := db.ExecContext(ctx, upsertSubscriptionQuery,
		sub.StudentID, nullInt(sub.PlanID), sub.Tier, sub.Status, sub.StartedAt, expiresAt,
	)
	return err
}

// Upsert creates or replaces the student's subscription
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	if err := upsertSubscription(ctx, r.db, sub); err != nil {
		r.logger.Error("failed to upsert subscription", zap.Error(err), zap.Int("studentId", sub.StudentID))
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// CreateFree inserts a free subscription unless the student already has one
func (r *subscriptionRepository) CreateFree(ctx context.Context, studentID int, startedAt time.Time) error {
	query := `
		INSERT IGNORE INTO subscriptions (student_id, tier, status, started_at)
		VALUES (?, ?, ?, ?)
	`

	if _, err := r.db.ExecContext(ctx, query, studentID, models.TierFree, models.SubscriptionActive, startedAt); err != nil {
		r.logger.Error("failed to create free subscription", zap.Error(err), zap.Int("studentId", studentID))
		return fmt.Errorf("failed to create free subscription: %w", err)
	}
	return nil
}

// ExpireDue moves premium subscriptions whose expiry passed back to the free tier
func (r *subscriptionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET tier = ?, status = ?
		WHERE tier = ? AND status = ? AND expires_at IS NOT NULL AND expires_at <= ?
	`

	result, err := r.db.ExecContext(ctx, query,
		models.TierFree, models.SubscriptionExpired, models.TierPremium, models.SubscriptionActive, now,
	)
	if err != nil {
		r.logger.Error("failed to expire subscriptions", zap.Error(err))
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	return rowsAffected(result)
}
