// Package api provides the HTTP API server and websocket endpoint.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/whale-tracker/internal/broadcast"
	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/storage"
)

// Store interfaces for dependency injection and testing

// WhaleReaderInterface provides whale ranking reads
type WhaleReaderInterface interface {
	ListActiveByRank(ctx context.Context, limit int) ([]*models.Whale, error)
	CountActive(ctx context.Context) (int, error)
}

// TransactionReaderInterface provides transaction analytics reads
type TransactionReaderInterface interface {
	Recent(ctx context.Context, limit int) ([]*models.WhaleTransaction, error)
	Analytics24h(ctx context.Context) (*storage.Analytics, error)
}

// AlertStoreInterface provides alert rule CRUD
type AlertStoreInterface interface {
	Create(ctx context.Context, alert *models.Alert) error
	Get(ctx context.Context, id string) (*models.Alert, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	Delete(ctx context.Context, id string) error
}

// HistoryReaderInterface provides alert history reads
type HistoryReaderInterface interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AlertHistory, error)
}

// StatsCacheInterface provides the degraded-read snapshot store
type StatsCacheInterface interface {
	StoreMetrics(ctx context.Context, snapshot *storage.MetricsSnapshot) error
	LoadMetrics(ctx context.Context) (*storage.MetricsSnapshot, error)
	LoadTopWhales(ctx context.Context) ([]*models.Whale, error)
}

// Pinger reports backing store reachability for the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	whales     WhaleReaderInterface
	txs        TransactionReaderInterface
	alerts     AlertStoreInterface
	history    HistoryReaderInterface
	stats      StatsCacheInterface
	hub        *broadcast.Hub
	config     *ServerConfig
	readiness  map[string]Pinger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	whales WhaleReaderInterface,
	txs TransactionReaderInterface,
	alerts AlertStoreInterface,
	history HistoryReaderInterface,
	stats StatsCacheInterface,
	hub *broadcast.Hub,
	readiness map[string]Pinger,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		whales:    whales,
		txs:       txs,
		alerts:    alerts,
		history:   history,
		stats:     stats,
		hub:       hub,
		config:    config,
		readiness: readiness,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ready", s.handleReady).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Probes are also reachable under /api for dashboard clients
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/ready", s.handleReady).Methods("GET")

	// Whale feed endpoints
	api.HandleFunc("/top-whales", s.handleTopWhales).Methods("GET")
	api.HandleFunc("/whale-transactions", s.handleWhaleTransactions).Methods("GET")
	api.HandleFunc("/whale-metrics", s.handleWhaleMetrics).Methods("GET")

	// Alert endpoints
	api.HandleFunc("/alerts", s.handleCreateAlert).Methods("POST")
	api.HandleFunc("/alerts", s.handleListAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}", s.handleUpdateAlert).Methods("PUT")
	api.HandleFunc("/alerts/{id}", s.handleDeleteAlert).Methods("DELETE")
	api.HandleFunc("/alert-history", s.handleAlertHistory).Methods("GET")

	// Websocket feed (rate limiting does not apply past the upgrade)
	s.router.HandleFunc("/ws", s.handleWebsocket)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status":  "healthy",
		"service": "whale-tracker",
	}
	if s.hub != nil {
		payload["wsClients"] = s.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, payload)
}

// handleReady reports backing store reachability
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.readiness))
	for name, p := range s.readiness {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	respondJSON(w, status, map[string]interface{}{
		"ready":  status == http.StatusOK,
		"checks": checks,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}
