package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
	"github.com/topi314/campus-events/server/ticket"
)

const maxBodySize = 1 << 20

var (
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("you are not allowed to access this resource")
	errBadRequest   = errors.New("invalid request body")
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode response", slog.Any("err", err))
	}
}

// decodeJSON decodes the request body into v and validates it.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return validate.Struct(v)
}

func errorStatus(err error) int {
	switch {
	case fieldErrors(err) != nil,
		errors.Is(err, errBadRequest),
		errors.Is(err, attendance.ErrInvalidStatus),
		errors.Is(err, database.ErrNotAStudent),
		errors.Is(err, ticket.ErrInvalidTicket):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, database.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden),
		errors.Is(err, auth.ErrDomainNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, attendance.ErrAttendeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrEmailTaken),
		errors.Is(err, database.ErrStudentNumberTaken),
		errors.Is(err, database.ErrAlreadyRegistered),
		errors.Is(err, database.ErrEventFull),
		errors.Is(err, database.ErrEventEnded),
		errors.Is(err, database.ErrPointsLocked),
		errors.Is(err, attendance.ErrInvalidTransition),
		errors.Is(err, ticket.ErrWrongEvent):
		return http.StatusConflict
	case errors.Is(err, database.ErrResetTokenInvalid):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code. Unexpected errors are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	rs := errorResponse{
		Error:  err.Error(),
		Fields: fieldErrors(err),
	}
	if rs.Fields != nil {
		rs.Error = "validation failed"
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Failed to handle request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		rs.Error = http.StatusText(http.StatusInternalServerError)
	}
	writeJSON(w, r, status, rs)
}
