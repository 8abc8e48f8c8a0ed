package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/robfig/cron/v3"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/metrics"
)

// ServiceName is the gRPC health service name reported by the monitor.
const ServiceName = "zkagent.chain"

const latestKey = "latest"

// MonitorConfig configures the heartbeat monitor.
type MonitorConfig struct {
	NodeURL  string
	Schedule string
	Timeout  time.Duration
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Monitor runs the prober on a cron schedule and keeps the latest result.
// It is independent of the event stream.
type Monitor struct {
	cfg    MonitorConfig
	prober *Prober
	logger *slog.Logger

	cron       *cron.Cron
	cache      *ttlcache.Cache[string, domain.HeartbeatResult]
	grpcHealth *grpchealth.Server

	mu      sync.Mutex
	started bool
}

// NewMonitor validates the schedule and builds a stopped monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.NodeURL == "" {
		return nil, fmt.Errorf("node url is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 30s"
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid heartbeat schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultProbeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	grpcHealth := grpchealth.NewServer()
	grpcHealth.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_UNKNOWN)

	return &Monitor{
		cfg:    cfg,
		prober: NewProber(cfg.Timeout),
		logger: cfg.Logger.With("component", "heartbeat"),
		cron:   cron.New(),
		cache: ttlcache.New[string, domain.HeartbeatResult](
			ttlcache.WithTTL[string, domain.HeartbeatResult](cfg.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, domain.HeartbeatResult](),
		),
		grpcHealth: grpcHealth,
	}, nil
}

// Start schedules the periodic probe. Calling Start twice is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if _, err := m.cron.AddFunc(m.cfg.Schedule, func() {
		m.Check(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule heartbeat: %w", err)
	}

	go m.cache.Start()
	m.cron.Start()
	m.started = true
	m.logger.Info("Heartbeat monitor started", "schedule", m.cfg.Schedule, "node", m.cfg.NodeURL)
	return nil
}

// Stop halts the schedule and waits for a running probe to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	<-m.cron.Stop().Done()
	m.cache.Stop()
	m.grpcHealth.Shutdown()
	m.started = false
}

// Check probes the node now and records the result.
func (m *Monitor) Check(ctx context.Context) domain.HeartbeatResult {
	result := m.prober.Probe(ctx, m.cfg.NodeURL)
	m.cache.Set(latestKey, result, ttlcache.DefaultTTL)

	if result.Alive {
		metrics.HeartbeatAlive.Set(1)
		metrics.HeartbeatProbes.WithLabelValues("alive").Inc()
		if result.Height != nil {
			metrics.ChainLatestBlock.Set(float64(*result.Height))
		}
		m.grpcHealth.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
		m.logger.Debug("Heartbeat ok", "height", heightAttr(result.Height))
	} else {
		metrics.HeartbeatAlive.Set(0)
		metrics.HeartbeatProbes.WithLabelValues("dead").Inc()
		m.grpcHealth.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		m.logger.Warn("Heartbeat failed", "error", result.Error)
	}
	return result
}

// Latest returns the cached result, probing when the cache is empty or expired.
func (m *Monitor) Latest(ctx context.Context) domain.HeartbeatResult {
	if item := m.cache.Get(latestKey); item != nil {
		return item.Value()
	}
	return m.Check(ctx)
}

// GRPCHealth returns the gRPC health service tracking heartbeat results.
func (m *Monitor) GRPCHealth() *grpchealth.Server {
	return m.grpcHealth
}

// NodeURL returns the probed node URL.
func (m *Monitor) NodeURL() string {
	return m.cfg.NodeURL
}

func heightAttr(h *int64) any {
	if h == nil {
		return "unknown"
	}
	return *h
}
