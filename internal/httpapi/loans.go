package httpapi

import (
	"net/http"
	"time"

	"github.com/libequip/loans/internal/reservation"
)

type loanCreateRequest struct {
	Name         string    `json:"name"`
	SeriesCourse string    `json:"seriesCourse"`
	StartDate    time.Time `json:"startDate"`
	ReturnDate   time.Time `json:"returnDate"`
	BookID       uint      `json:"bookId"`
}

type loanUpdateRequest struct {
	Name         *string    `json:"name"`
	SeriesCourse *string    `json:"seriesCourse"`
	StartDate    *time.Time `json:"startDate"`
	ReturnDate   *time.Time `json:"returnDate"`
	BookID       *uint      `json:"bookId"`
	Returned     *bool      `json:"returned"`
}

func (s *Server) createLoan(w http.ResponseWriter, r *http.Request) {
	var req loanCreateRequest
	if !s.decode(w, r, &req) {
		return
	}

	loan, err := s.reservations.CreateLoan(r.Context(), reservation.LoanInput{
		Name:         req.Name,
		SeriesCourse: req.SeriesCourse,
		StartDate:    req.StartDate,
		ReturnDate:   req.ReturnDate,
		BookID:       req.BookID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) listLoans(w http.ResponseWriter, r *http.Request) {
	returned := parseReturnedFilter(r)
	loans, err := s.reservations.ListLoans(r.Context(), returned)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loans)
}

func (s *Server) getLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	loan, err := s.reservations.GetLoan(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loan)
}

// updateLoan handles both the return transition ({"returned": true}) and
// plain field edits. The book reference is frozen at creation.
func (s *Server) updateLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req loanUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.BookID != nil {
		s.writeError(w, &reservation.ValidationError{Field: "bookId", Reason: "cannot be changed after creation"})
		return
	}

	if req.Returned != nil {
		if !*req.Returned {
			s.writeError(w, &reservation.ValidationError{Field: "returned", Reason: "cannot be set back to false"})
			return
		}
		loan, err := s.reservations.ReturnLoan(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, loan)
		return
	}

	loan, err := s.reservations.UpdateLoan(r.Context(), id, reservation.LoanUpdate{
		Name:         req.Name,
		SeriesCourse: req.SeriesCourse,
		StartDate:    req.StartDate,
		ReturnDate:   req.ReturnDate,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.reservations.DeleteLoan(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "loan deleted", "id": id})
}
