// Package api provides HTTP handlers for the TodoBot REST API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/go-chi/chi/v5"
)

// maxJSONBodySize caps CRUD request bodies.
const maxJSONBodySize = 64 << 10

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Message writes a {"message": ...} acknowledgement.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"message": message})
}

// WriteError maps a service error to its HTTP status and writes it.
func WriteError(w http.ResponseWriter, err error) {
	var (
		notFound   *domain.NotFoundError
		conflict   *domain.ConflictError
		validation *domain.ValidationError
		modelErr   *domain.ModelError
	)

	switch {
	case errors.As(err, &notFound):
		Error(w, http.StatusNotFound, capitalize(notFound.Resource)+" not found")
	case errors.As(err, &conflict):
		Error(w, http.StatusBadRequest, capitalize(conflict.Resource)+" already exists")
	case errors.As(err, &validation):
		Error(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &modelErr):
		slog.Error("Model request failed", "provider", modelErr.Provider, "error", modelErr.Err)
		Error(w, http.StatusBadGateway, "assistant is unavailable, please try again")
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	default:
		slog.Error("Request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}

// DecodeJSON reads a size-limited JSON body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return &domain.ValidationError{Field: "body", Reason: "is not valid JSON"}
	}
	return nil
}

var errBodyTooLarge = errors.New("request body too large")

// WriteDecodeError reports a DecodeJSON failure.
func WriteDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	WriteError(w, err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
