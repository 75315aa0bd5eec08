package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"querylens/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError maps domain error types onto HTTP statuses with the
// standard {code, message} envelope.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		conflictErr   *domain.ConflictError
		executionErr  *domain.ExecutionError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
	case errors.As(err, &executionErr):
		status = http.StatusBadGateway
	}

	respondJSON(w, status, Error{Code: status, Message: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, Error{Code: http.StatusBadRequest, Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
