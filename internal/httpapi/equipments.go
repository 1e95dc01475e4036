package httpapi

import (
	"net/http"

	"github.com/libequip/loans/internal/db"
	"github.com/libequip/loans/internal/reservation"
)

type equipmentCreateRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int32  `json:"quantity"`
}

type equipmentUpdateRequest struct {
	Name     *string `json:"name"`
	Type     *string `json:"type"`
	Quantity *int32  `json:"quantity"`
}

func (s *Server) createEquipment(w http.ResponseWriter, r *http.Request) {
	var req equipmentCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, &reservation.ValidationError{Field: "name", Reason: "is required"})
		return
	}
	if req.Type == "" {
		s.writeError(w, &reservation.ValidationError{Field: "type", Reason: "is required"})
		return
	}
	if req.Quantity <= 0 {
		s.writeError(w, &reservation.ValidationError{Field: "quantity", Reason: "must be a positive integer"})
		return
	}

	item := &db.Equipment{
		Name:     req.Name,
		Type:     req.Type,
		Quantity: req.Quantity,
	}
	if err := s.equipment.Create(r.Context(), item); err != nil {
		s.writeError(w, err)
		return
	}

	s.publishInventory("equipment", "created", item.ID, item.Name)
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) listEquipments(w http.ResponseWriter, r *http.Request) {
	items, err := s.equipment.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) getEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	item, err := s.equipment.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// updateEquipment edits the display fields; quantity edits are
// administrative restocks and do not pass through the reservation
// accounting.
func (s *Server) updateEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req equipmentUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			s.writeError(w, &reservation.ValidationError{Field: "name", Reason: "cannot be empty"})
			return
		}
		updates["name"] = *req.Name
	}
	if req.Type != nil {
		if *req.Type == "" {
			s.writeError(w, &reservation.ValidationError{Field: "type", Reason: "cannot be empty"})
			return
		}
		updates["type"] = *req.Type
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			s.writeError(w, &reservation.ValidationError{Field: "quantity", Reason: "cannot be negative"})
			return
		}
		updates["quantity"] = *req.Quantity
	}
	if len(updates) == 0 {
		s.writeError(w, &reservation.ValidationError{Field: "body", Reason: "no fields to update"})
		return
	}

	item, err := s.equipment.Update(r.Context(), id, updates)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.publishInventory("equipment", "updated", item.ID, item.Name)
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.equipment.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.publishInventory("equipment", "deleted", id, "")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "equipment deleted", "id": id})
}
