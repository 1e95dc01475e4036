package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libequip/loans/internal/config"
	"github.com/libequip/loans/internal/db"
	"github.com/libequip/loans/internal/events"
	"github.com/libequip/loans/internal/httpapi"
	"github.com/libequip/loans/internal/metrics"
	"github.com/libequip/loans/internal/repo"
	"github.com/libequip/loans/internal/reservation"
	"github.com/libequip/loans/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	log.Info("Loan service starting")

	log.Info("Connecting to database")
	database, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	log.Info("Running database migrations")
	if err := db.RunMigrations(database); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	equipmentRepo := repo.NewEquipmentRepository(database, log)
	bookRepo := repo.NewBookRepository(database, log)
	scheduleRepo := repo.NewScheduleRepository(database, log)
	loanRepo := repo.NewLoanRepository(database, log)

	// Events are best-effort: the service stays up without a broker
	var reservationEvents reservation.EventPublisher
	var inventoryEvents httpapi.InventoryPublisher
	log.Info("Connecting to RabbitMQ")
	publisher, err := events.NewPublisher(cfg.RabbitMQURL, log)
	if err != nil {
		log.Warn("RabbitMQ unavailable, events disabled", zap.Error(err))
	} else {
		defer publisher.Close()
		reservationEvents = publisher
		inventoryEvents = publisher
	}

	m := metrics.New()

	reservations := reservation.NewService(
		database, equipmentRepo, bookRepo, scheduleRepo, loanRepo,
		reservationEvents, m, log,
	)

	api := httpapi.NewServer(reservations, equipmentRepo, bookRepo, inventoryEvents, log)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      api.Handler(cfg.CORSOrigins),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting API server", zap.String("address", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to serve API", zap.Error(err))
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsMux.HandleFunc("/healthz", healthHandler(database, publisher, log))

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:      metricsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting metrics server", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to serve metrics", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error("API server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Error("Metrics server shutdown error", zap.Error(err))
	}

	log.Info("Server stopped")
}

func healthHandler(database *db.DB, publisher *events.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.Ping(); err != nil {
			log.Error("Database health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unhealthy: database connection failed"))
			return
		}

		if publisher != nil && !publisher.IsHealthy() {
			log.Error("RabbitMQ health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unhealthy: rabbitmq connection failed"))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	}
}
