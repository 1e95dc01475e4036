package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/libequip/loans/internal/repo"
	"github.com/libequip/loans/internal/reservation"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// InventoryPublisher publishes administrative inventory change events.
// Implemented by events.Publisher; tests substitute a stub.
type InventoryPublisher interface {
	PublishInventoryChanged(ctx context.Context, kind, action string, id uint, name string) error
}

// Server exposes the REST API consumed by the admin and web clients
type Server struct {
	reservations *reservation.Service
	equipment    *repo.EquipmentRepository
	books        *repo.BookRepository
	publisher    InventoryPublisher
	log          *zap.Logger
}

// NewServer creates a new API server
func NewServer(
	reservations *reservation.Service,
	equipment *repo.EquipmentRepository,
	books *repo.BookRepository,
	publisher InventoryPublisher,
	log *zap.Logger,
) *Server {
	return &Server{
		reservations: reservations,
		equipment:    equipment,
		books:        books,
		publisher:    publisher,
		log:          log,
	}
}

// Handler builds the route table and wraps it with CORS for the two
// single-page clients
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /schedules", s.createSchedule)
	mux.HandleFunc("GET /schedules", s.listSchedules)
	mux.HandleFunc("GET /schedules/{id}", s.getSchedule)
	mux.HandleFunc("PUT /schedules/{id}", s.updateSchedule)
	mux.HandleFunc("DELETE /schedules/{id}", s.deleteSchedule)

	mux.HandleFunc("POST /loans", s.createLoan)
	mux.HandleFunc("GET /loans", s.listLoans)
	mux.HandleFunc("GET /loans/{id}", s.getLoan)
	mux.HandleFunc("PUT /loans/{id}", s.updateLoan)
	mux.HandleFunc("DELETE /loans/{id}", s.deleteLoan)

	mux.HandleFunc("POST /equipments", s.createEquipment)
	mux.HandleFunc("GET /equipments", s.listEquipments)
	mux.HandleFunc("GET /equipments/{id}", s.getEquipment)
	mux.HandleFunc("PUT /equipments/{id}", s.updateEquipment)
	mux.HandleFunc("DELETE /equipments/{id}", s.deleteEquipment)

	mux.HandleFunc("POST /books", s.createBook)
	mux.HandleFunc("GET /books", s.listBooks)
	mux.HandleFunc("GET /books/{id}", s.getBook)
	mux.HandleFunc("PUT /books/{id}", s.updateBook)
	mux.HandleFunc("DELETE /books/{id}", s.deleteBook)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(mux)
}

// publishInventory fires an inventory change event without blocking the
// request
func (s *Server) publishInventory(kind, action string, id uint, name string) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.publisher.PublishInventoryChanged(ctx, kind, action, id, name); err != nil {
			s.log.Error("Failed to publish inventory event", zap.Error(err))
		}
	}()
}
