package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the reservation accounting instruments. Each instance
// carries its own registry so tests can create throwaway sets without
// colliding on the default registry.
type Metrics struct {
	registry *prometheus.Registry

	ReservationsCreated     *prometheus.CounterVec
	ReservationsRejected    *prometheus.CounterVec
	ReservationsReturned    *prometheus.CounterVec
	ReservationsOutstanding *prometheus.GaugeVec
}

// New creates a metrics set backed by a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	registry.MustRegister(collectors.NewGoCollector())

	return &Metrics{
		registry: registry,
		ReservationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loans_reservations_created_total",
			Help: "Reservations successfully created, by kind (loan or schedule).",
		}, []string{"kind"}),
		ReservationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loans_reservations_rejected_total",
			Help: "Reservation requests rejected, by kind and reason.",
		}, []string{"kind", "reason"}),
		ReservationsReturned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loans_reservations_returned_total",
			Help: "Reservations returned, by kind.",
		}, []string{"kind"}),
		ReservationsOutstanding: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loans_reservations_outstanding",
			Help: "Reservations currently holding inventory, by kind.",
		}, []string{"kind"}),
	}
}

// Handler returns the HTTP handler exposing this metrics set
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
