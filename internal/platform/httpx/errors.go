package httpx

import (
	"errors"
	"net/http"
)

// Transport-level sentinels. Handlers wrap or map their domain errors
// onto these; RespondError turns them into problem documents.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
)

var statusByErr = []struct {
	err    error
	status int
	title  string
}{
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrDuplicate, http.StatusConflict, "Duplicate"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
}

// RespondError maps a sentinel to its problem document. Unrecognized
// errors become an opaque 500: internals never leak through this path.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			Problem(w, m.status, m.title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
