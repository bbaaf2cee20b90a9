package billing

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/finvera/finvera/internal/platform/httpx"
	"github.com/finvera/finvera/internal/shared"
)

// Middleware gates routes by subscription state and plan tier.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

const inactiveSubscriptionDetail = "Your subscription is not active. Please renew your subscription to access this feature."

// RequireFeature admits requests only when the company's subscription is
// active, meets minPlan, and includes the feature.
func (m Middleware) RequireFeature(feature string, minPlan Plan) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := m.subscription(w, r)
			if !ok {
				return
			}
			if !AtLeast(sub.Plan, minPlan) {
				m.warn(r, "plan insufficient", sub.Plan, feature)
				httpx.Problem(w, http.StatusForbidden, "Plan Upgrade Required",
					fmt.Sprintf("This feature requires a %s plan or higher. Your current plan is %s.", minPlan, sub.Plan))
				return
			}
			if !HasFeature(sub.Plan, feature) {
				m.warn(r, "feature not included", sub.Plan, feature)
				httpx.Problem(w, http.StatusForbidden, "Plan Upgrade Required",
					fmt.Sprintf("Your current plan %s does not include the %s feature.", sub.Plan, feature))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePlan admits requests only for an exact plan tier.
func (m Middleware) RequirePlan(required Plan) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := m.subscription(w, r)
			if !ok {
				return
			}
			if sub.Plan != required {
				m.warn(r, "plan mismatch", sub.Plan, "")
				httpx.Problem(w, http.StatusForbidden, "Plan Upgrade Required",
					fmt.Sprintf("This feature requires a %s plan. Your current plan is %s.", required, sub.Plan))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) subscription(w http.ResponseWriter, r *http.Request) (Subscription, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.Company() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return Subscription{}, false
	}
	sub, err := m.Service.Subscription(r.Context(), sess.Company())
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("load subscription", slog.String("company_id", sess.Company()), slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return Subscription{}, false
	}
	if !sub.Active() {
		m.warn(r, "subscription inactive", sub.Plan, "")
		httpx.Problem(w, http.StatusForbidden, "Subscription Required", inactiveSubscriptionDetail)
		return Subscription{}, false
	}
	return sub, true
}

func (m Middleware) warn(r *http.Request, msg string, plan Plan, feature string) {
	if m.Logger == nil {
		return
	}
	attrs := []any{
		slog.String("plan", string(plan)),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	}
	if feature != "" {
		attrs = append(attrs, slog.String("feature", feature))
	}
	m.Logger.Warn(msg, attrs...)
}
