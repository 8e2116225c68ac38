package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

type paymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) *paymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending payment
func (r *paymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, student_id, plan_id, amount_cents, currency, method, card_last4, status, qr_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.StudentID, p.PlanID, p.AmountCents, p.Currency, p.Method, p.CardLast4, p.Status, p.QRPayload, p.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create payment", zap.Error(err), zap.String("paymentId", p.ID))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by ID
func (r *paymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `
		SELECT id, student_id, plan_id, amount_cents, currency, method, card_last4, status, qr_payload, failure_reason, created_at, verified_at
		FROM payments
		WHERE id = ?
		LIMIT 1
	`

	var (
		p          models.Payment
		verifiedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.StudentID,
		&p.PlanID,
		&p.AmountCents,
		&p.Currency,
		&p.Method,
		&p.CardLast4,
		&p.Status,
		&p.QRPayload,
		&p.FailureReason,
		&p.CreatedAt,
		&verifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("payment")
	}
	if err != nil {
		r.logger.Error("failed to get payment", zap.Error(err), zap.String("paymentId", id))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.VerifiedAt = timePtr(verifiedAt)
	return &p, nil
}

// Settle records the outcome of a pending payment.
// When activate is not nil the student's subscription is locked, passed to it, and its result stored in the same transaction.
// It reports false, changing nothing, when the payment is no longer pending.
func (r *paymentRepository) Settle(
	ctx context.Context,
	p *models.Payment,
	activate func(current *models.Subscription) *models.Subscription,
) (bool, error) {
	if p.VerifiedAt == nil {
		return false, fmt.Errorf("settling a payment requires a verification time")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE payments
		SET status = ?, failure_reason = ?, verified_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := tx.ExecContext(ctx, query, p.Status, p.FailureReason, *p.VerifiedAt, p.ID, models.PaymentPending)
	if err != nil {
		r.logger.Error("failed to settle payment", zap.Error(err), zap.String("paymentId", p.ID))
		return false, fmt.Errorf("failed to settle payment: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if activate != nil {
		current, err := r.lockSubscription(ctx, tx, p.StudentID)
		if err != nil {
			r.logger.Error("failed to lock subscription", zap.Error(err), zap.String("paymentId", p.ID))
			return false, fmt.Errorf("failed to lock subscription: %w", err)
		}
		if err := upsertSubscription(ctx, tx, activate(current)); err != nil {
			r.logger.Error("failed to activate subscription", zap.Error(err), zap.String("paymentId", p.ID))
			return false, fmt.Errorf("failed to activate subscription: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// lockSubscription serializes settlements of one student on the user row and reads the latest subscription.
// The user row is locked because the subscription row may not exist yet.
func (r *paymentRepository) lockSubscription(ctx context.Context, tx *sql.Tx, studentID int) (*models.Subscription, error) {
	var id int
	if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ? FOR UPDATE`, studentID).Scan(&id); err != nil {
		return nil, err
	}

	sub, err := getSubscription(ctx, tx, studentID, " FOR UPDATE")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}
