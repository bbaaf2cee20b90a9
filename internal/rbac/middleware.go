package rbac

import (
	"log/slog"
	"net/http"

	"github.com/finvera/finvera/internal/platform/httpx"
	"github.com/finvera/finvera/internal/shared"
)

// Middleware wires permission checks into HTTP routes.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	// Observe, when set, records the outcome of every check for metrics.
	Observe func(entity, result string)
}

// Require rejects requests whose session user lacks action on entity.
// Missing identity yields 401, denial yields 403 as an RFC7807 problem.
func (m Middleware) Require(entity string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				m.observe(entity, "unauthenticated")
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			result, err := m.Service.Check(r.Context(), sess.User(), sess.Company(), entity, action)
			if err != nil {
				m.observe(entity, "error")
				if m.Logger != nil {
					m.Logger.Error("permission check", slog.String("entity", entity), slog.String("action", string(action)), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !result.Allowed {
				m.observe(entity, "denied")
				// Denials on admin entities get a diagnostic line for support.
				if m.Logger != nil && (entity == "users" || entity == "audit") {
					m.Logger.Warn("admin access denied",
						slog.String("entity", entity),
						slog.String("action", string(action)),
						slog.String("path", r.URL.Path),
						slog.String("user_id", sess.User()),
						slog.String("reason", result.Reason))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			m.observe(entity, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) observe(entity, result string) {
	if m.Observe != nil {
		m.Observe(entity, result)
	}
}
