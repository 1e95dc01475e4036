package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/libequip/loans/internal/repo"
	"github.com/libequip/loans/internal/reservation"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps domain errors to HTTP statuses. Anything outside the
// expected taxonomy is an internal error; the caller only learns that a
// retry later might help.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *reservation.ValidationError
	var insufficientErr *reservation.InsufficientInventoryError
	var alreadyReturnedErr *reservation.AlreadyReturnedError
	var conflictErr *reservation.ConflictError

	switch {
	case errors.As(err, &validationErr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Reason, Field: validationErr.Field})
	case errors.As(err, &insufficientErr):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: insufficientErr.Error()})
	case errors.As(err, &alreadyReturnedErr):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: alreadyReturnedErr.Error()})
	case errors.As(err, &conflictErr):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: conflictErr.Error()})
	case errors.Is(err, repo.ErrEquipmentNotFound),
		errors.Is(err, repo.ErrBookNotFound),
		errors.Is(err, repo.ErrScheduleNotFound),
		errors.Is(err, repo.ErrLoanNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, repo.ErrEquipmentInUse), errors.Is(err, repo.ErrBookInUse):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.log.Error("Unhandled error", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// decode parses a JSON request body into dst
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

// pathID parses the {id} path segment
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil || id == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id", Field: "id"})
		return 0, false
	}
	return uint(id), true
}
