package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/rpc/provider"
)

// SystemStatus represents the overall health state of the agent.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Sources supplies runtime state to the health endpoints. Every field is optional.
type Sources struct {
	StreamState func() domain.ConnectionState
	Reconnects  func() int64
	Address     func() string
	Providers   func() []provider.Provider
	Journal     func(ctx context.Context) error
}

// Report is the /health/detailed payload.
type Report struct {
	Status     SystemStatus                     `json:"status"`
	Heartbeat  domain.HeartbeatResult           `json:"heartbeat"`
	Stream     domain.ConnectionState           `json:"stream"`
	Reconnects int64                            `json:"reconnects"`
	Address    string                           `json:"address,omitempty"`
	Providers  map[string]provider.HealthStatus `json:"providers,omitempty"`
	Journal    string                           `json:"journal,omitempty"`
}

// Server provides HTTP endpoints for health monitoring, plus an optional gRPC health service.
type Server struct {
	monitor  *Monitor
	sources  Sources
	server   *http.Server
	grpcPort int

	mu   sync.Mutex
	grpc *grpc.Server
}

// NewServer creates a new health server. grpcPort <= 0 disables gRPC.
func NewServer(monitor *Monitor, sources Sources, port, grpcPort int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:  monitor,
		sources:  sources,
		grpcPort: grpcPort,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler exposes the HTTP routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the gRPC listener (when enabled) and blocks serving HTTP.
func (s *Server) Start() error {
	if s.grpcPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.grpcPort))
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		gs := grpc.NewServer()
		healthpb.RegisterHealthServer(gs, s.monitor.GRPCHealth())
		s.mu.Lock()
		s.grpc = gs
		s.mu.Unlock()
		go func() {
			if err := gs.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP and gRPC servers.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	gs := s.grpc
	s.mu.Unlock()
	if gs != nil {
		gs.GracefulStop()
	}
	return s.server.Shutdown(ctx)
}

// Evaluate builds the current report. A dead node is critical; a live node
// is degraded when its stream is not connected, the journal is unreachable
// or a provider is throttled.
func (s *Server) Evaluate(ctx context.Context) Report {
	report := Report{
		Status:    StatusHealthy,
		Heartbeat: s.monitor.Latest(ctx),
		Stream:    domain.StateDisconnected,
	}
	if s.sources.StreamState != nil {
		report.Stream = s.sources.StreamState()
	}
	if s.sources.Reconnects != nil {
		report.Reconnects = s.sources.Reconnects()
	}
	if s.sources.Address != nil {
		report.Address = s.sources.Address()
	}
	providersOK := true
	if s.sources.Providers != nil {
		report.Providers = make(map[string]provider.HealthStatus)
		for _, p := range s.sources.Providers() {
			report.Providers[p.GetName()] = p.GetHealth()
			providersOK = providersOK && p.IsAvailable()
		}
	}

	journalOK := true
	if s.sources.Journal != nil {
		report.Journal = "ok"
		if err := s.sources.Journal(ctx); err != nil {
			report.Journal = err.Error()
			journalOK = false
		}
	}

	switch {
	case !report.Heartbeat.Alive:
		report.Status = StatusCritical
	case report.Stream != domain.StateConnected, !journalOK, !providersOK:
		report.Status = StatusDegraded
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Evaluate(r.Context())

	response := map[string]any{
		"status":    report.Status,
		"heartbeat": report.Heartbeat,
		"stream":    report.Stream,
	}
	w.Header().Set("Content-Type", "application/json")

	if report.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.Evaluate(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
