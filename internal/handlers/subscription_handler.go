package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

// SubscriptionService is the interface that wraps methods for pricing plans, subscriptions and simulated payments.
type SubscriptionService interface {
	// Method Plans returns the active pricing plans.
	Plans(ctx context.Context) ([]models.PricingPlan, error)
	// Method CreatePlan adds a pricing plan. Admins only.
	CreatePlan(ctx context.Context, actor models.Actor, req *models.CreatePlanRequest) (*models.PricingPlan, error)
	// Method Current returns the calling student's subscription. Students without one are on the free tier.
	Current(ctx context.Context, actor models.Actor) (*models.Subscription, error)
	// Method Checkout creates a pending payment and queues its verification.
	Checkout(ctx context.Context, actor models.Actor, req *models.CheckoutRequest) (*models.Payment, error)
	// Method GetPayment returns a payment to its payer.
	GetPayment(ctx context.Context, actor models.Actor, id string) (*models.Payment, error)
	// Method Cancel moves the calling student back to the free tier.
	Cancel(ctx context.Context, actor models.Actor) (*models.Subscription, error)
}

// SubscriptionHandler handles subscription and payment HTTP requests
type SubscriptionHandler struct {
	BaseHandler
	subscriptionService SubscriptionService
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(subscriptionService SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:         newBaseHandler(logger),
		subscriptionService: subscriptionService,
	}
}

// RegisterRoutes registers all subscription handler routes. "adminMw" guards plan creation.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router, adminMw func(http.Handler) http.Handler) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Get("/plans", h.Plans)
		r.With(adminMw).Post("/plans", h.CreatePlan)
		r.Get("/me", h.Current)
		r.Post("/checkout", h.Checkout)
		r.Get("/payments/{id}", h.GetPayment)
		r.Post("/cancel", h.Cancel)
	})
}

// Plans handles GET /subscriptions/plans
// @Summary List pricing plans
// @Description Get the active pricing plans
// @Tags subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.PricingPlan
// @Router /subscriptions/plans [get]
func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.subscriptionService.Plans(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "failed to list plans")
		return
	}

	h.RespondJSON(w, http.StatusOK, nonNil(plans))
}

// CreatePlan handles POST /subscriptions/plans
// @Summary Create pricing plan
// @Description Add a pricing plan to the catalog. Admins only.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreatePlanRequest true "Plan"
// @Success 201 {object} models.PricingPlan
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Admins only"
// @Failure 409 {object} map[string]string "Plan name already exists"
// @Router /subscriptions/plans [post]
func (h *SubscriptionHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req models.CreatePlanRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	plan, err := h.subscriptionService.CreatePlan(r.Context(), actor, &req)
	if err != nil {
		h.respondServiceError(w, err, "failed to create plan")
		return
	}

	h.RespondJSON(w, http.StatusCreated, plan)
}

// Current handles GET /subscriptions/me
// @Summary Current subscription
// @Description Get the calling student's subscription. Students without one are on an active free tier.
// @Tags subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.Subscription
// @Failure 403 {object} map[string]string "Students only"
// @Router /subscriptions/me [get]
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Current(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, err, "failed to get subscription")
		return
	}

	h.RespondJSON(w, http.StatusOK, sub)
}

// Checkout handles POST /subscriptions/checkout
// @Summary Checkout
// @Description Create a pending simulated payment for a plan. It is verified in the background, poll the payment for its status.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CheckoutRequest true "Plan and payment method"
// @Success 202 {object} models.Payment
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Students only"
// @Failure 404 {object} map[string]string "Plan not found"
// @Router /subscriptions/checkout [post]
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req models.CheckoutRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	payment, err := h.subscriptionService.Checkout(r.Context(), actor, &req)
	if err != nil {
		h.respondServiceError(w, err, "failed to checkout")
		return
	}

	h.RespondJSON(w, http.StatusAccepted, payment)
}

// GetPayment handles GET /subscriptions/payments/{id}
// @Summary Payment status
// @Description Poll the status of a payment
// @Tags subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} models.Payment
// @Failure 403 {object} map[string]string "Not your payment"
// @Failure 404 {object} map[string]string "Payment not found"
// @Router /subscriptions/payments/{id} [get]
func (h *SubscriptionHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	payment, err := h.subscriptionService.GetPayment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err, "failed to get payment")
		return
	}

	h.RespondJSON(w, http.StatusOK, payment)
}

// Cancel handles POST /subscriptions/cancel
// @Summary Cancel subscription
// @Description Move the calling student back to the free tier
// @Tags subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.Subscription
// @Failure 409 {object} map[string]string "No premium subscription"
// @Router /subscriptions/cancel [post]
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Cancel(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, err, "failed to cancel subscription")
		return
	}

	h.RespondJSON(w, http.StatusOK, sub)
}
