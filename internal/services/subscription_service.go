package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/tasks"
	"go.uber.org/zap"
)

// PricingPlanRepository is the interface that wraps methods for PricingPlans table data access
type PricingPlanRepository interface {
	// Method ListActive retrieves the plans on sale, cheapest first.
	ListActive(ctx context.Context) ([]models.PricingPlan, error)
	// Method GetByID retrieves a plan by ID.
	//
	// If plan with such ID does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByID(ctx context.Context, id int) (*models.PricingPlan, error)
	// Method Create inserts a new plan.
	//
	// If the name is taken, a wrapped models.ErrDuplicate is returned.
	Create(ctx context.Context, plan *models.PricingPlan) error
}

// SubscriptionRepository is the interface that wraps methods for Subscriptions table data access
type SubscriptionRepository interface {
	// Method GetByStudent retrieves the student's subscription.
	//
	// If the student has no stored subscription, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByStudent(ctx context.Context, studentID int) (*models.Subscription, error)
	// Method Upsert creates or replaces the student's subscription.
	Upsert(ctx context.Context, sub *models.Subscription) error
	// Method ExpireDue moves premium subscriptions whose expiry passed back to the free tier.
	//
	// The number of expired subscriptions is returned.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// PaymentRepository is the interface that wraps methods for Payments table data access
type PaymentRepository interface {
	// Method Create inserts a pending payment.
	Create(ctx context.Context, p *models.Payment) error
	// Method GetByID retrieves a payment by ID.
	//
	// If payment with such ID does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	// Method Settle stores the outcome of a pending payment in one transaction.
	//
	// When "activate" is not nil it is called with the student's locked subscription ("nil" when there is none)
	// and the subscription it returns is stored in the same transaction.
	// It reports false, changing nothing, when the payment is no longer pending.
	Settle(ctx context.Context, p *models.Payment, activate func(current *models.Subscription) *models.Subscription) (bool, error)
}

// declinedCardSuffix makes a simulated card payment fail
const declinedCardSuffix = "0000"

type subscriptionService struct {
	planRepo         PricingPlanRepository
	subscriptionRepo SubscriptionRepository
	paymentRepo      PaymentRepository
	userRepo         UserReader
	tasks            TaskEnqueuer
	verifyDelay      time.Duration
	logger           *zap.Logger
	now              Clock
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	planRepo PricingPlanRepository,
	subscriptionRepo SubscriptionRepository,
	paymentRepo PaymentRepository,
	userRepo UserReader,
	tasks TaskEnqueuer,
	verifyDelay time.Duration,
	logger *zap.Logger,
) *subscriptionService {
	return &subscriptionService{
		planRepo:         planRepo,
		subscriptionRepo: subscriptionRepo,
		paymentRepo:      paymentRepo,
		userRepo:         userRepo,
		tasks:            tasks,
		verifyDelay:      verifyDelay,
		logger:           logger,
		now:              SystemClock,
	}
}

// Plans returns the plans on sale
func (s *subscriptionService) Plans(ctx context.Context) ([]models.PricingPlan, error) {
	return s.planRepo.ListActive(ctx)
}

// CreatePlan adds a plan to the catalog
func (s *subscriptionService) CreatePlan(ctx context.Context, actor models.Actor, req *models.CreatePlanRequest) (*models.PricingPlan, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can create plans")
	}
	if req.DurationDays < 1 {
		return nil, invalidInput("durationDays must be positive")
	}
	if req.PriceCents < 0 {
		return nil, invalidInput("priceCents cannot be negative")
	}

	features := make([]string, 0, len(req.Features))
	for _, f := range req.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}

	plan := &models.PricingPlan{
		Name:          strings.TrimSpace(req.Name),
		PriceCents:    req.PriceCents,
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
		Features:      features,
		DurationLabel: strings.TrimSpace(req.DurationLabel),
		DurationDays:  req.DurationDays,
		Active:        true,
		CreatedAt:     s.now(),
	}
	if err := s.planRepo.Create(ctx, plan); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, fmt.Errorf("plan name already exists: %w", ErrConflict)
		}
		return nil, err
	}
	return plan, nil
}

// Current returns the calling student's subscription. A premium subscription past its expiry reads as expired.
func (s *subscriptionService) Current(ctx context.Context, actor models.Actor) (*models.Subscription, error) {
	now := s.now()
	sub, err := s.subscriptionRepo.GetByStudent(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.FreeSubscription(actor.UserID, now), nil
		}
		return nil, err
	}

	if sub.Tier == models.TierPremium && sub.Status == models.SubscriptionActive && sub.EffectiveTier(now) == models.TierFree {
		sub.Tier = models.TierFree
		sub.Status = models.SubscriptionExpired
	}
	return sub, nil
}

// Checkout starts a simulated payment for a plan. The payment is settled later by the worker.
func (s *subscriptionService) Checkout(ctx context.Context, actor models.Actor, req *models.CheckoutRequest) (*models.Payment, error) {
	if !actor.IsStudent() {
		return nil, forbidden("only students can subscribe")
	}

	plan, err := s.planRepo.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, mapRepoError(err, "pricing plan")
	}
	if !plan.Active {
		return nil, notFound("pricing plan")
	}

	payment := &models.Payment{
		ID:          uuid.NewString(),
		StudentID:   actor.UserID,
		PlanID:      plan.ID,
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		Method:      req.Method,
		Status:      models.PaymentPending,
		CreatedAt:   s.now(),
	}
	switch req.Method {
	case models.PaymentCard:
		if !isCardLast4(req.CardLast4) {
			return nil, invalidInput("cardLast4 must be 4 digits for card payments")
		}
		payment.CardLast4 = req.CardLast4
	case models.PaymentUPI, models.PaymentQR:
	default:
		return nil, invalidInput("invalid payment method %q", req.Method)
	}
	payment.QRPayload = qrPayload(payment)

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.tasks.EnqueuePaymentVerification(ctx, payment.ID, s.verifyDelay); err != nil {
		s.logger.Error("failed to queue payment verification", zap.String("paymentId", payment.ID), zap.Error(err))
		s.failUnverifiable(context.WithoutCancel(ctx), payment)
		return nil, fmt.Errorf("failed to queue payment verification: %w", err)
	}

	return payment, nil
}

// GetPayment returns a payment of the calling student
func (s *subscriptionService) GetPayment(ctx context.Context, actor models.Actor, id string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "payment")
	}
	if payment.StudentID != actor.UserID && !actor.IsAdmin() {
		return nil, notFound("payment")
	}
	return payment, nil
}

// Cancel moves the calling student's premium subscription back to the free tier
func (s *subscriptionService) Cancel(ctx context.Context, actor models.Actor) (*models.Subscription, error) {
	sub, err := s.Current(ctx, actor)
	if err != nil {
		return nil, err
	}
	if sub.EffectiveTier(s.now()) != models.TierPremium {
		return nil, fmt.Errorf("no premium subscription to cancel: %w", ErrConflict)
	}

	sub.Tier = models.TierFree
	sub.Status = models.SubscriptionCancelled
	sub.PlanID = nil
	sub.ExpiresAt = nil
	if err := s.subscriptionRepo.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// VerifyPayment settles a pending payment. Settled payments are returned unchanged.
// Cards ending in 0000 are declined, everything else activates the plan, extending an unexpired premium period.
func (s *subscriptionService) VerifyPayment(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "payment")
	}
	if payment.Status != models.PaymentPending {
		return payment, nil
	}

	now := s.now()
	payment.VerifiedAt = &now

	if payment.Method == models.PaymentCard && strings.HasSuffix(payment.CardLast4, declinedCardSuffix) {
		payment.Status = models.PaymentFailed
		payment.FailureReason = "card declined"
		settled, _, err := s.settle(ctx, payment, nil)
		return settled, err
	}

	plan, err := s.planRepo.GetByID(ctx, payment.PlanID)
	if err != nil {
		return nil, mapRepoError(err, "pricing plan")
	}

	var expiresAt time.Time
	payment.Status = models.PaymentSucceeded
	settled, won, err := s.settle(ctx, payment, func(current *models.Subscription) *models.Subscription {
		sub := renewSubscription(current, payment.StudentID, plan, now)
		expiresAt = *sub.ExpiresAt
		return sub
	})
	if err != nil || !won {
		return settled, err
	}

	s.sendReceipt(context.WithoutCancel(ctx), payment, plan, expiresAt)

	return payment, nil
}

// renewSubscription returns the premium subscription bought with "plan".
// An unexpired premium period is extended from its expiry, anything else starts at "now".
func renewSubscription(current *models.Subscription, studentID int, plan *models.PricingPlan, now time.Time) *models.Subscription {
	start, startedAt := now, now
	if current != nil && current.EffectiveTier(now) == models.TierPremium {
		startedAt = current.StartedAt
		if current.ExpiresAt != nil {
			start = *current.ExpiresAt
		}
	}

	expiresAt := start.AddDate(0, 0, plan.DurationDays)
	planID := plan.ID
	return &models.Subscription{
		StudentID: studentID,
		PlanID:    &planID,
		Tier:      models.TierPremium,
		Status:    models.SubscriptionActive,
		StartedAt: startedAt,
		ExpiresAt: &expiresAt,
	}
}

// failUnverifiable marks a payment whose verification could not be queued as failed
func (s *subscriptionService) failUnverifiable(ctx context.Context, payment *models.Payment) {
	now := s.now()
	payment.Status = models.PaymentFailed
	payment.FailureReason = "verification unavailable"
	payment.VerifiedAt = &now
	if _, err := s.paymentRepo.Settle(ctx, payment, nil); err != nil {
		s.logger.Error("failed to mark payment as failed", zap.String("paymentId", payment.ID), zap.Error(err))
	}
}

// settle stores the outcome and reports whether this call settled the payment.
// When another worker settled first the stored payment is returned.
func (s *subscriptionService) settle(
	ctx context.Context,
	payment *models.Payment,
	activate func(current *models.Subscription) *models.Subscription,
) (*models.Payment, bool, error) {
	ok, err := s.paymentRepo.Settle(ctx, payment, activate)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		stored, err := s.paymentRepo.GetByID(ctx, payment.ID)
		return stored, false, err
	}
	s.logger.Info("payment settled",
		zap.String("paymentId", payment.ID),
		zap.String("status", string(payment.Status)),
		zap.Int("studentId", payment.StudentID),
	)
	return payment, true, nil
}

func (s *subscriptionService) sendReceipt(ctx context.Context, payment *models.Payment, plan *models.PricingPlan, expiresAt time.Time) {
	user, err := s.userRepo.GetByID(ctx, payment.StudentID)
	if err != nil {
		s.logger.Warn("failed to load student for receipt", zap.String("paymentId", payment.ID), zap.Error(err))
		return
	}
	email := tasks.ReceiptEmail(user.Email, plan.Name, payment.AmountCents, payment.Currency, payment.ID, expiresAt)
	if err := s.tasks.EnqueueEmail(ctx, email); err != nil {
		s.logger.Warn("failed to queue receipt", zap.String("paymentId", payment.ID), zap.Error(err))
	}
}

// ExpireDue moves premium subscriptions past their expiry back to the free tier
func (s *subscriptionService) ExpireDue(ctx context.Context) (int64, error) {
	expired, err := s.subscriptionRepo.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("expired subscriptions", zap.Int64("count", expired))
	}
	return expired, nil
}

// qrPayload builds the deep link encoded in the payment QR code
func qrPayload(p *models.Payment) string {
	return fmt.Sprintf("learnsy://pay?ref=%s&amount=%d&currency=%s",
		url.QueryEscape(p.ID), p.AmountCents, url.QueryEscape(p.Currency))
}

func isCardLast4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
