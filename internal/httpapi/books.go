package httpapi

import (
	"net/http"

	"github.com/libequip/loans/internal/db"
	"github.com/libequip/loans/internal/reservation"
)

type bookCreateRequest struct {
	Name     string `json:"name"`
	Number   int32  `json:"number"`
	Gender   string `json:"gender"`
	Author   string `json:"author"`
	Quantity int32  `json:"quantity"`
}

type bookUpdateRequest struct {
	Name     *string `json:"name"`
	Number   *int32  `json:"number"`
	Gender   *string `json:"gender"`
	Author   *string `json:"author"`
	Quantity *int32  `json:"quantity"`
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var req bookCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, &reservation.ValidationError{Field: "name", Reason: "is required"})
		return
	}
	if req.Author == "" {
		s.writeError(w, &reservation.ValidationError{Field: "author", Reason: "is required"})
		return
	}
	if req.Gender == "" {
		s.writeError(w, &reservation.ValidationError{Field: "gender", Reason: "is required"})
		return
	}
	if req.Number <= 0 {
		s.writeError(w, &reservation.ValidationError{Field: "number", Reason: "must be a positive integer"})
		return
	}
	if req.Quantity <= 0 {
		s.writeError(w, &reservation.ValidationError{Field: "quantity", Reason: "must be a positive integer"})
		return
	}

	book := &db.Book{
		Name:     req.Name,
		Number:   req.Number,
		Gender:   req.Gender,
		Author:   req.Author,
		Quantity: req.Quantity,
	}
	if err := s.books.Create(r.Context(), book); err != nil {
		s.writeError(w, err)
		return
	}

	s.publishInventory("book", "created", book.ID, book.Name)
	s.writeJSON(w, http.StatusCreated, book)
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.books.List(r.Context(), r.URL.Query().Get("gender"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	book, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req bookUpdateRequest
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
	if req.Number != nil {
		if *req.Number <= 0 {
			s.writeError(w, &reservation.ValidationError{Field: "number", Reason: "must be a positive integer"})
			return
		}
		updates["number"] = *req.Number
	}
	if req.Gender != nil {
		if *req.Gender == "" {
			s.writeError(w, &reservation.ValidationError{Field: "gender", Reason: "cannot be empty"})
			return
		}
		updates["gender"] = *req.Gender
	}
	if req.Author != nil {
		if *req.Author == "" {
			s.writeError(w, &reservation.ValidationError{Field: "author", Reason: "cannot be empty"})
			return
		}
		updates["author"] = *req.Author
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

	book, err := s.books.Update(r.Context(), id, updates)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.publishInventory("book", "updated", book.ID, book.Name)
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.books.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.publishInventory("book", "deleted", id, "")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "book deleted", "id": id})
}
