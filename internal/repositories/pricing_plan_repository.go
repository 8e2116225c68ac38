package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/learnsy/backend/internal/models"
)

type pricingPlanRepository struct {
	db *sql.DB
}

// NewPricingPlanRepository creates a new pricing plan repository
func NewPricingPlanRepository(db *sql.DB) *pricingPlanRepository {
	return &pricingPlanRepository{
		db: db,
	}
}

const pricingPlanColumns = `id, name, price_cents, currency, features, duration_label, duration_days, active, created_at`

func scanPricingPlan(row interface{ Scan(...any) error }) (*models.PricingPlan, error) {
	var (
		plan     models.PricingPlan
		features []byte
	)
	err := row.Scan(
		&plan.ID,
		&plan.Name,
		&plan.PriceCents,
		&plan.Currency,
		&features,
		&plan.DurationLabel,
		&plan.DurationDays,
		&plan.Active,
		&plan.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	plan.Features = []string{}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &plan.Features); err != nil {
			return nil, fmt.Errorf("failed to decode plan features: %w", err)
		}
	}
	return &plan, nil
}

// ListActive retrieves the plans offered for checkout, cheapest first
func (r *pricingPlanRepository) ListActive(ctx context.Context) ([]models.PricingPlan, error) {
	query := `SELECT ` + pricingPlanColumns + ` FROM pricing_plans WHERE active = TRUE ORDER BY price_cents, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing plans: %w", err)
	}
	defer rows.Close()

	plans := make([]models.PricingPlan, 0)
	for rows.Next() {
		plan, err := scanPricingPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pricing plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return plans, nil
}

// GetByID retrieves a plan by ID
func (r *pricingPlanRepository) GetByID(ctx context.Context, id int) (*models.PricingPlan, error) {
	query := `SELECT ` + pricingPlanColumns + ` FROM pricing_plans WHERE id = ? LIMIT 1`

	plan, err := scanPricingPlan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("pricing plan")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing plan by id: %w", err)
	}
	return plan, nil
}

// Create inserts a new plan
func (r *pricingPlanRepository) Create(ctx context.Context, plan *models.PricingPlan) error {
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return fmt.Errorf("failed to encode plan features: %w", err)
	}

	query := `
		INSERT INTO pricing_plans (name, price_cents, currency, features, duration_label, duration_days, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		plan.Name, plan.PriceCents, plan.Currency, features, plan.DurationLabel, plan.DurationDays, plan.Active, plan.CreatedAt,
	)
	if isDuplicate(err) {
		return fmt.Errorf("plan name taken: %w", models.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create pricing plan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	plan.ID = int(id)
	return nil
}
