package audit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finvera/finvera/internal/platform/httpx"
	"github.com/finvera/finvera/internal/rbac"
	"github.com/finvera/finvera/internal/shared"
)

const maxDateRangeHours = 24 * 90

// Handler exposes the audit timeline over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: guard}
}

// MountRoutes registers audit routes. Both endpoints require audit read.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("audit", rbac.ActionRead))
		r.Get("/", h.handleTimeline)
		r.Get("/export", h.handleExport)
	})
}

type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Actor:  q.Get("actor"),
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	if filters.Entity != "" && !rbac.ValidEntity(filters.Entity) {
		return filters, validationError{message: "неизвестная сущность"}
	}

	to := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filters, validationError{message: "некорректная дата to, ожидается YYYY-MM-DD"}
		}
		to = parsed
	}
	from := to.Add(-7 * 24 * time.Hour)
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filters, validationError{message: "некорректная дата from, ожидается YYYY-MM-DD"}
		}
		from = parsed
	}
	if from.After(to) {
		return filters, validationError{message: "дата from не может быть позже даты to"}
	}
	if to.Sub(from) > maxDateRangeHours*time.Hour {
		return filters, validationError{message: "диапазон дат не может превышать 90 дней"}
	}
	filters.From = from
	filters.To = to

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filters, validationError{message: "некорректный номер страницы"}
		}
		filters.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return filters, validationError{message: "некорректный размер страницы"}
		}
		filters.PageSize = size
	}
	return filters, nil
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	filters.CompanyID = sess.Company()

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	filters.CompanyID = sess.Company()

	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}

	filename := fmt.Sprintf("audit_%s_%s.csv", filters.From.Format("2006-01-02"), filters.To.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := WriteCSV(w, rows); err != nil {
		h.logger.Error("write audit export", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var verr validationError
	if errors.As(err, &verr) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
		return
	}
	h.logger.Error("audit timeline", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
}
