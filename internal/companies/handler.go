package companies

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finvera/finvera/internal/billing"
	"github.com/finvera/finvera/internal/platform/httpx"
	"github.com/finvera/finvera/internal/shared"
)

// Handler exposes the current-company endpoint.
type Handler struct {
	logger  *slog.Logger
	repo    RepositoryPort
	billing *billing.Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo RepositoryPort, billingService *billing.Service) *Handler {
	return &Handler{logger: logger, repo: repo, billing: billingService}
}

// MountRoutes registers company routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/current", h.handleCurrent)
}

type currentResponse struct {
	Company    Company      `json:"company"`
	Plan       billing.Plan `json:"plan"`
	PlanActive bool         `json:"plan_active"`
	MaxUsers   int          `json:"max_users"`
	Features   []string     `json:"features"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.Company() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	company, err := h.repo.FindByID(r.Context(), sess.Company())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("load company", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sub, err := h.billing.Subscription(r.Context(), company.ID)
	if err != nil {
		h.logger.Error("load subscription", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	limits := billing.PlanLimits(sub.Plan)

	resp := currentResponse{
		Company:    *company,
		Plan:       sub.Plan,
		PlanActive: sub.Active(),
		MaxUsers:   limits.MaxUsers,
		Features:   limits.Features,
		ExpiresAt:  sub.ExpiresAt,
	}
	httpx.JSON(w, http.StatusOK, resp)
}
