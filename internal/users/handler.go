package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/finvera/finvera/internal/billing"
	"github.com/finvera/finvera/internal/platform/httpx"
	"github.com/finvera/finvera/internal/rbac"
	"github.com/finvera/finvera/internal/shared"
)

// Handler exposes user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbacSvc   *rbac.Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacSvc *rbac.Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbacSvc:   rbacSvc,
		rbac:      rbacMW,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("users", rbac.ActionRead))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("users", rbac.ActionCreate))
		r.Post("/", h.invite)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("users", rbac.ActionUpdate))
		r.Patch("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("users", rbac.ActionDelete))
		r.Delete("/{id}", h.deactivate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("users", rbac.ActionManageRoles))
		r.Get("/{id}/roles", h.roles)
		r.Post("/{id}/roles", h.assignRole)
		r.Delete("/{id}/roles/{roleID}", h.removeRole)
	})

	// Self-readable: a user may always inspect their own map and landing
	// page; reading someone else's requires users:read.
	r.Get("/{id}/permissions", h.selfOrGuarded(h.permissions))
	r.Get("/{id}/navigation", h.selfOrGuarded(h.navigation))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	user, err := h.service.Get(r.Context(), sess.Company(), sess.User())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	list, err := h.service.List(r.Context(), sess.Company())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list})
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	var input InviteInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "некорректное тело запроса")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := h.service.Invite(r.Context(), sess.Company(), sess.User(), r.Header.Get(shared.IdempotencyHeader), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "некорректное тело запроса")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := h.service.Update(r.Context(), sess.Company(), sess.User(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), sess.Company(), sess.User(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) roles(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	assignments, err := h.service.Roles(r.Context(), sess.Company(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": assignments})
}

type assignRolePayload struct {
	RoleID string `json:"role_id" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var payload assignRolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "некорректное тело запроса")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.AssignRole(r.Context(), sess.Company(), sess.User(), chi.URLParam(r, "id"), payload.RoleID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.RemoveRole(r.Context(), sess.Company(), sess.User(), chi.URLParam(r, "id"), chi.URLParam(r, "roleID")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	perms, err := h.rbacSvc.UserPermissions(r.Context(), chi.URLParam(r, "id"), sess.Company())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) navigation(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	page, err := h.service.Navigation(r.Context(), h.rbacSvc, sess.Company(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"first_available_page": page})
}

// selfOrGuarded admits the session owner directly and routes everyone else
// through the users:read permission check.
func (h *Handler) selfOrGuarded(next http.HandlerFunc) http.HandlerFunc {
	guarded := h.rbac.Require("users", rbac.ActionRead)(next)
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if chi.URLParam(r, "id") == sess.User() {
			next(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrAlreadyMember):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrSelfDeactivate):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, billing.ErrUserLimitReached):
		httpx.Problem(w, http.StatusForbidden, "Plan Limit Reached", err.Error())
	default:
		h.logger.Error("users handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
