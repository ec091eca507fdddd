// Package dashboard serves the strategy performance API.
// It exposes the portfolio overview, per-strategy metrics, trade tables,
// equity chart images and an ad-hoc drawdown calculator over HTTP, and
// streams refreshed overviews to WebSocket clients.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/analytics"
	"trading-dashboard/internal/common"
	"trading-dashboard/internal/metrics"
)

// Telemetry receives dashboard counters. *metrics.Wrapper implements it.
type Telemetry interface {
	WSClients() metrics.Gauge
	WSBroadcasts() metrics.Counter
	ObserveRequest(route string, code int)
	// ObserveStrategies receives the default view after each refresh.
	ObserveStrategies(strategies []analytics.StrategyMetrics)
}

// Config holds the dashboard server settings.
type Config struct {
	Port             int
	RefreshInterval  time.Duration
	ChartCacheTTL    time.Duration
	DefaultTimeframe string
	MetricsHandler   http.Handler // defaults to promhttp.Handler()
}

// Server provides the dashboard HTTP API and WebSocket stream.
type Server struct {
	service   *analytics.Service // Analytics service answering every query
	telemetry Telemetry          // Request and connection counters
	cfg       Config
	charts    *chartCache
	now       func() time.Time

	router           *mux.Router
	server           *http.Server             // HTTP server for dashboard
	upgrader         websocket.Upgrader       // WebSocket upgrader for real-time updates
	clients          map[*websocket.Conn]bool // Connected WebSocket clients
	clientsMu        sync.Mutex               // Guards clients and serialises writes
	broadcastChannel chan Message             // Channel for broadcasting overviews
	stopChannel      chan struct{}            // Channel for shutdown signaling
	isRunning        bool                     // Whether the dashboard is running
	mu               sync.Mutex               // Mutex for dashboard state
}

// NewServer creates a dashboard over service. telemetry may be nil.
func NewServer(service *analytics.Service, telemetry Telemetry, cfg Config) *Server {
	if telemetry == nil {
		telemetry = noopTelemetry{}
	}
	if cfg.DefaultTimeframe == "" {
		cfg.DefaultTimeframe = common.DefaultDefaultTimeframe
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	s := &Server{
		service:          service,
		telemetry:        telemetry,
		cfg:              cfg,
		charts:           newChartCache(cfg.ChartCacheTTL),
		now:              time.Now,
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*websocket.Conn]bool),
		broadcastChannel: make(chan Message, 16),
		stopChannel:      make(chan struct{}),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.instrument)
	api.HandleFunc("/performance", s.handlePerformance).Methods(http.MethodGet)
	api.HandleFunc("/strategies", s.handleStrategies).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{id}", s.handleStrategy).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{id}/trades", s.handleStrategyTrades).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{id}/equity.png", s.handleEquityChart).Methods(http.MethodGet)
	api.HandleFunc("/drawdown", s.handleDrawdown).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", cfg.MetricsHandler).Methods(http.MethodGet)
	s.router = r

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the collector, the broadcaster and the HTTP listener.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	s.startStreaming()

	// Start HTTP server
	go func() {
		log.Info().
			Str("address", s.server.Addr).
			Msg("Starting dashboard server")

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Dashboard server failed")
		}
	}()

	s.isRunning = true
	log.Info().Msg("Dashboard started successfully")
	return nil
}

func (s *Server) startStreaming() {
	go s.overviewCollector()
	go s.clientBroadcaster()
}

// Stop closes every client and shuts the HTTP server down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Signal stop
	close(s.stopChannel)

	// Close all WebSocket connections
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
		s.telemetry.WSClients().Dec()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown dashboard server")
		return err
	}

	s.isRunning = false
	log.Info().Msg("Dashboard stopped")
	return nil
}

// IsRunning reports whether Start has been called without Stop.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

type noopTelemetry struct{}

type noopMetric struct{}

func (noopMetric) Set(float64) {}
func (noopMetric) Inc()        {}
func (noopMetric) Dec()        {}

func (noopTelemetry) WSClients() metrics.Gauge      { return noopMetric{} }
func (noopTelemetry) WSBroadcasts() metrics.Counter { return noopMetric{} }
func (noopTelemetry) ObserveRequest(string, int)    {}

func (noopTelemetry) ObserveStrategies([]analytics.StrategyMetrics) {}
