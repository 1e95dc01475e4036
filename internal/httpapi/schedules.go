package httpapi

import (
	"net/http"
	"time"

	"github.com/libequip/loans/internal/reservation"
)

type scheduleCreateRequest struct {
	Name        string    `json:"name"`
	Quantity    int32     `json:"quantity"`
	StartDate   time.Time `json:"startDate"`
	ReturnDate  time.Time `json:"returnDate"`
	WeekDay     string    `json:"weekDay"`
	Type        string    `json:"type"`
	EquipmentID uint      `json:"equipmentId"`
}

type scheduleUpdateRequest struct {
	Name        *string    `json:"name"`
	Quantity    *int32     `json:"quantity"`
	StartDate   *time.Time `json:"startDate"`
	ReturnDate  *time.Time `json:"returnDate"`
	WeekDay     *string    `json:"weekDay"`
	Type        *string    `json:"type"`
	EquipmentID *uint      `json:"equipmentId"`
	Returned    *bool      `json:"returned"`
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleCreateRequest
	if !s.decode(w, r, &req) {
		return
	}

	schedule, err := s.reservations.CreateSchedule(r.Context(), reservation.ScheduleInput{
		Name:        req.Name,
		Quantity:    req.Quantity,
		StartDate:   req.StartDate,
		ReturnDate:  req.ReturnDate,
		WeekDay:     req.WeekDay,
		Type:        req.Type,
		EquipmentID: req.EquipmentID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, schedule)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	returned := parseReturnedFilter(r)
	schedules, err := s.reservations.ListSchedules(r.Context(), returned)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schedules)
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	schedule, err := s.reservations.GetSchedule(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schedule)
}

// updateSchedule handles both the return transition ({"returned": true})
// and plain field edits. Quantity and equipment reference are frozen at
// creation; editing them would desynchronize the inventory decrement
// already applied.
func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req scheduleUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Quantity != nil {
		s.writeError(w, &reservation.ValidationError{Field: "quantity", Reason: "cannot be changed after creation"})
		return
	}
	if req.EquipmentID != nil {
		s.writeError(w, &reservation.ValidationError{Field: "equipmentId", Reason: "cannot be changed after creation"})
		return
	}

	if req.Returned != nil {
		if !*req.Returned {
			s.writeError(w, &reservation.ValidationError{Field: "returned", Reason: "cannot be set back to false"})
			return
		}
		schedule, err := s.reservations.ReturnSchedule(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, schedule)
		return
	}

	schedule, err := s.reservations.UpdateSchedule(r.Context(), id, reservation.ScheduleUpdate{
		Name:       req.Name,
		StartDate:  req.StartDate,
		ReturnDate: req.ReturnDate,
		WeekDay:    req.WeekDay,
		Type:       req.Type,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.reservations.DeleteSchedule(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "schedule deleted", "id": id})
}

// parseReturnedFilter reads the optional ?returned=true|false filter
func parseReturnedFilter(r *http.Request) *bool {
	switch r.URL.Query().Get("returned") {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
