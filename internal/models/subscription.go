package models

import "time"

// Tier is the access tier of a student
type Tier string

// Tier constants
const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// SubscriptionStatus is the state of a subscription
type SubscriptionStatus string

// SubscriptionStatus constants
const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// PricingPlan is a catalog entry for a paid tier
type PricingPlan struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	PriceCents    int64     `json:"priceCents"`
	Currency      string    `json:"currency"`
	Features      []string  `json:"features"`
	DurationLabel string    `json:"durationLabel"`
	DurationDays  int       `json:"durationDays"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CreatePlanRequest represents a pricing plan creation request
type CreatePlanRequest struct {
	Name          string   `json:"name" validate:"required,notblank,max=100"`
	PriceCents    int64    `json:"priceCents" validate:"min=0"`
	Currency      string   `json:"currency" validate:"required,len=3,alpha"`
	Features      []string `json:"features" validate:"max=30,dive,notblank,max=200"`
	DurationLabel string   `json:"durationLabel" validate:"required,notblank,max=50"`
	DurationDays  int      `json:"durationDays" validate:"required,min=1,max=3660"`
}

// Subscription is a student's current tier
type Subscription struct {
	ID        int                `json:"id"`
	StudentID int                `json:"studentId"`
	PlanID    *int               `json:"planId,omitempty"`
	Tier      Tier               `json:"tier"`
	Status    SubscriptionStatus `json:"status"`
	StartedAt time.Time          `json:"startedAt"`
	ExpiresAt *time.Time         `json:"expiresAt,omitempty"`
}

// EffectiveTier returns the tier that applies at now. Premium only applies while active and unexpired.
func (s *Subscription) EffectiveTier(now time.Time) Tier {
	if s == nil || s.Tier != TierPremium || s.Status != SubscriptionActive {
		return TierFree
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return TierFree
	}
	return TierPremium
}

// FreeSubscription is the implicit subscription of a student without a stored row
func FreeSubscription(studentID int, now time.Time) *Subscription {
	return &Subscription{
		StudentID: studentID,
		Tier:      TierFree,
		Status:    SubscriptionActive,
		StartedAt: now,
	}
}

// PaymentMethod is how a simulated payment is made
type PaymentMethod string

// PaymentMethod constants
const (
	PaymentCard PaymentMethod = "card"
	PaymentUPI  PaymentMethod = "upi"
	PaymentQR   PaymentMethod = "qr"
)

// PaymentStatus is the state of a payment
type PaymentStatus string

// PaymentStatus constants
const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is a simulated checkout for a pricing plan
type Payment struct {
	ID            string        `json:"id"`
	StudentID     int           `json:"studentId"`
	PlanID        int           `json:"planId"`
	AmountCents   int64         `json:"amountCents"`
	Currency      string        `json:"currency"`
	Method        PaymentMethod `json:"method"`
	CardLast4     string        `json:"-"`
	Status        PaymentStatus `json:"status"`
	QRPayload     string        `json:"qrPayload"`
	FailureReason string        `json:"failureReason,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	VerifiedAt    *time.Time    `json:"verifiedAt,omitempty"`
}

// CheckoutRequest starts a simulated payment
type CheckoutRequest struct {
	PlanID    int           `json:"planId" validate:"required,min=1"`
	Method    PaymentMethod `json:"method" validate:"required,oneof=card upi qr"`
	CardLast4 string        `json:"cardLast4,omitempty" validate:"omitempty,len=4,numeric"`
}
