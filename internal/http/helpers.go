package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"sitebook/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

// writeError maps domain errors to HTTP statuses: data integrity faults
// are conflicts, missing rows are not found, transient store failures ask
// the client to retry, and validation failures are unprocessable.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, core.ErrDataIntegrity):
		status = http.StatusConflict
	case errors.Is(err, core.ErrProjectNotFound), errors.Is(err, sql.ErrNoRows):
		status = http.StatusNotFound
	case core.IsTransient(err):
		status = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrEmptyProjectName),
		errors.Is(err, core.ErrEmptyDescription):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err, "path", r.URL.Path, "status", status)
	} else {
		slog.WarnContext(r.Context(), "Request rejected",
			"error", err, "path", r.URL.Path, "status", status)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeValidationError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msg})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id in path")
	}
	return id, nil
}

// pathDay parses the {date} path segment as YYYY-MM-DD.
func pathDay(r *http.Request) (core.Day, error) {
	return core.ParseDay(r.PathValue("date"))
}

// queryDay parses an optional YYYY-MM-DD query parameter; absent means nil.
func queryDay(r *http.Request, name string) (*core.Day, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := core.ParseDay(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// decodeBody decodes a JSON request body into dst, rejecting unknown
// fields so that typos fail loudly.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
