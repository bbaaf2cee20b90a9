package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finvera/finvera/internal/shared"
)

// Subscription is the billing state of a company.
type Subscription struct {
	CompanyID string     `json:"company_id"`
	Plan      Plan       `json:"plan"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the subscription currently grants access.
func (s Subscription) Active() bool {
	if s.Status != "active" && s.Status != "trial" {
		return false
	}
	if s.ExpiresAt != nil && s.ExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}

// ErrUserLimitReached signals that the plan's seat limit is exhausted.
var ErrUserLimitReached = errors.New("user limit for the current plan is reached")

// RepositoryPort abstracts billing persistence.
type RepositoryPort interface {
	Subscription(ctx context.Context, companyID string) (Subscription, error)
	CountActiveUsers(ctx context.Context, companyID string) (int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Subscription loads the company's subscription.
func (r *Repository) Subscription(ctx context.Context, companyID string) (Subscription, error) {
	const q = `SELECT company_id, plan, status, expires_at FROM subscriptions WHERE company_id = $1`
	var sub Subscription
	err := r.pool.QueryRow(ctx, q, companyID).Scan(&sub.CompanyID, &sub.Plan, &sub.Status, &sub.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, shared.ErrNotFound
		}
		return Subscription{}, err
	}
	return sub, nil
}

// CountActiveUsers counts active seats of a company.
func (r *Repository) CountActiveUsers(ctx context.Context, companyID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE company_id = $1 AND is_active`, companyID).Scan(&count)
	return count, err
}

// Service answers plan questions for other modules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Subscription returns the company's subscription. A company without a
// subscription row is treated as an inactive START tier.
func (s *Service) Subscription(ctx context.Context, companyID string) (Subscription, error) {
	sub, err := s.repo.Subscription(ctx, companyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Subscription{CompanyID: companyID, Plan: PlanStart, Status: "inactive"}, nil
		}
		return Subscription{}, err
	}
	if !ValidPlan(sub.Plan) {
		return Subscription{}, fmt.Errorf("billing: unknown plan %q for company %s", sub.Plan, companyID)
	}
	return sub, nil
}

// EnsureUserCapacity fails with ErrUserLimitReached when inviting one more
// active user would exceed the plan's seat limit.
func (s *Service) EnsureUserCapacity(ctx context.Context, companyID string) error {
	sub, err := s.Subscription(ctx, companyID)
	if err != nil {
		return err
	}
	count, err := s.repo.CountActiveUsers(ctx, companyID)
	if err != nil {
		return err
	}
	if !AllowsUsers(sub.Plan, count+1) {
		return fmt.Errorf("%w: plan %s allows %d users", ErrUserLimitReached, sub.Plan, PlanLimits(sub.Plan).MaxUsers)
	}
	return nil
}
