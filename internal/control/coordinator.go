package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/zkagent/internal/core/config"
	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/emitter"
	"github.com/vietddude/zkagent/internal/health"
	"github.com/vietddude/zkagent/internal/identity"
	"github.com/vietddude/zkagent/internal/infra/chain"
	redisclient "github.com/vietddude/zkagent/internal/infra/redis"
	"github.com/vietddude/zkagent/internal/infra/rpc/provider"
	"github.com/vietddude/zkagent/internal/infra/storage"
	"github.com/vietddude/zkagent/internal/infra/storage/memory"
	"github.com/vietddude/zkagent/internal/infra/storage/postgres"
	"github.com/vietddude/zkagent/internal/infra/stream"
	"github.com/vietddude/zkagent/internal/tools"
)

// emitTimeout bounds fan-out of a single observed event.
const emitTimeout = 5 * time.Second

// ErrShutdown is returned by Start after Shutdown.
var ErrShutdown = errors.New("coordinator shut down")

// Config holds the coordinator configuration.
type Config struct {
	Port      int // <= 0 disables the health server
	GRPCPort  int
	Chain     config.ChainConfig
	Stream    config.StreamConfig
	Heartbeat config.HeartbeatConfig
	Redis     redisclient.Config
	Database  postgres.Config
}

// ConfigFromApp maps the application configuration onto the coordinator's.
func ConfigFromApp(app *config.AppConfig) Config {
	return Config{
		Port:      app.Server.Port,
		GRPCPort:  app.Server.GRPCPort,
		Chain:     app.Chain,
		Stream:    app.Stream,
		Heartbeat: app.Heartbeat,
		Redis:     app.Redis,
		Database:  app.Database,
	}
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithAgentFactory replaces the prover-backed agent factory.
func WithAgentFactory(f chain.AgentFactory) Option {
	return func(c *Coordinator) { c.factory = f }
}

// WithClient replaces the REST chain client.
func WithClient(client chain.Client) Option {
	return func(c *Coordinator) { c.client = client }
}

// WithJournal replaces the configured event journal.
func WithJournal(repo storage.EventRepository) Option {
	return func(c *Coordinator) { c.journal = repo }
}

// WithEmitter adds an emitter to the fan-out.
func WithEmitter(e emitter.Emitter) Option {
	return func(c *Coordinator) { c.extraEmitters = append(c.extraEmitters, e) }
}

// WithoutEventStream skips the event stream, for one-shot tool invocations.
func WithoutEventStream() Option {
	return func(c *Coordinator) { c.noStream = true }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator owns the process-wide chain handles: client, identity and
// event stream. It sequences startup and shutdown and backs the tools.
type Coordinator struct {
	cfg           Config
	log           *slog.Logger
	factory       chain.AgentFactory
	extraEmitters []emitter.Emitter
	noStream      bool

	monitor      *health.Monitor
	healthServer *health.Server
	tools        *tools.Registry

	mu           sync.RWMutex
	started      bool
	stopped      bool
	client       chain.Client
	restClient   *chain.RESTClient
	handle       *identity.Handle
	stream       *stream.Client
	journal      storage.EventRepository
	emitter      *emitter.Multi
	db           *postgres.DB
	stopMetrics  context.CancelFunc
	cancelStart  context.CancelFunc
	startDone    chan struct{}
	registerLock sync.Mutex
}

// NewCoordinator builds a coordinator. Nothing connects until Start.
func NewCoordinator(cfg Config, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "coordinator")

	monitor, err := health.NewMonitor(health.MonitorConfig{
		NodeURL:  cfg.Chain.StatusURL(),
		Schedule: cfg.Heartbeat.Schedule,
		Timeout:  cfg.Heartbeat.Timeout,
		CacheTTL: cfg.Heartbeat.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init heartbeat: %w", err)
	}
	c.monitor = monitor

	c.tools = tools.NewRegistry(nil)
	if err := c.tools.Register(tools.ChainTools(c)...); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	if cfg.Port > 0 {
		c.healthServer = health.NewServer(monitor, health.Sources{
			StreamState: c.StreamState,
			Reconnects:  c.streamReconnects,
			Address:     c.CurrentAddress,
			Providers:   c.providers,
			Journal:     c.journalHealth,
		}, cfg.Port, cfg.GRPCPort)
	}
	return c, nil
}

// Start brings up the chain features: journal, emitters, heartbeat, identity
// bootstrap and, only when bootstrap succeeded, the event stream.
// Failures of optional parts are logged; the host keeps running.
// The lock is only taken to publish each part, so accessors and the health
// endpoints answer while bootstrap is in flight. Shutdown cancels a running
// Start, which then returns ErrShutdown.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrShutdown
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancelStart = cancel
	c.startDone = done
	c.mu.Unlock()

	defer func() {
		cancel()
		close(done)
	}()

	if !c.cfg.Chain.IsEnabled() {
		c.log.Info("Chain features disabled")
		return nil
	}

	// 1. Journal and emitters
	j := c.openJournal(ctx)
	emitters := []emitter.Emitter{
		emitter.NewLogEmitter(c.log),
		emitter.NewStoreEmitter(j.repo),
	}
	if c.cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(c.cfg.Redis)
		if err != nil {
			c.log.Warn("Failed to connect to Redis, event publishing disabled", "error", err)
		} else {
			emitters = append(emitters, emitter.NewRedisEmitter(rc, c.cfg.Redis.Channel))
		}
	}
	multi := emitter.NewMulti(append(emitters, c.extraEmitters...)...)

	// 2. Chain client
	client := c.Client()
	var restClient *chain.RESTClient
	if client == nil {
		restClient = chain.NewRESTClient(c.cfg.Chain.RPCURL, c.cfg.Chain.RESTURL, c.cfg.Chain.Timeout)
		client = restClient
	}
	factory := c.factory
	if factory == nil {
		factory = chain.ProverAgentFactory(client, nil)
	}

	// 3. Heartbeat and health endpoints
	published := c.publish(func() {
		c.journal, c.db, c.stopMetrics = j.repo, j.db, j.stopMetrics
		c.emitter = multi
		c.client, c.restClient = client, restClient

		if err := c.monitor.Start(); err != nil {
			c.log.Warn("Failed to start heartbeat monitor", "error", err)
		}
		if c.healthServer != nil {
			go func() {
				if err := c.healthServer.Start(); err != nil {
					c.log.Error("Health server failed", "error", err)
				}
			}()
		}
	})
	if !published {
		_ = multi.Close()
		j.close()
		if restClient != nil {
			_ = restClient.Close()
		}
		return ErrShutdown
	}

	// 4. Identity
	handle := identity.Bootstrap(ctx, c.cfg.Chain.Mnemonic, identity.Params{
		Agent:        c.agentConfig(),
		Factory:      factory,
		AutoRegister: c.cfg.Chain.AutoRegisterEnabled(),
		Logger:       c.log,
	})
	if handle == nil {
		if ctx.Err() != nil && c.isStopped() {
			return ErrShutdown
		}
		c.log.Warn("Chain identity unavailable, event stream not started")
		return nil
	}
	if !c.publish(func() { c.handle = handle }) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), emitTimeout)
		defer shutdownCancel()
		if err := handle.Agent.Shutdown(shutdownCtx); err != nil {
			c.log.Warn("Agent shutdown failed", "error", err)
		}
		return ErrShutdown
	}
	c.log.Info("Chain identity ready",
		"address", handle.Address,
		"registered", handle.Registered,
		"auto_registered", handle.AutoRegistered,
	)

	// 5. Event stream
	if c.noStream {
		return nil
	}
	s, err := stream.NewClient(stream.Config{
		RPCURL:           c.cfg.Chain.RPCURL,
		ReconnectDelay:   c.cfg.Stream.ReconnectDelay,
		HandshakeTimeout: c.cfg.Stream.HandshakeTimeout,
		Logger:           c.log,
	}, stream.Handlers{
		OnCommitment:      c.onCommitment,
		OnAgentRegistered: c.onAgentRegistered,
		OnStateChange: func(s domain.ConnectionState) {
			c.log.Debug("Stream state changed", "state", s)
		},
	})
	if err != nil {
		c.log.Error("Failed to create event stream", "error", err)
		return nil
	}
	// Start inside publish so a concurrent Shutdown either sees the stream
	// or prevents it from starting. Start never blocks.
	if !c.publish(func() {
		c.stream = s
		s.Start()
	}) {
		return ErrShutdown
	}
	return nil
}

// publish applies fn under the lock unless Shutdown has begun.
func (c *Coordinator) publish(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	fn()
	return true
}

func (c *Coordinator) isStopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopped
}

type journalParts struct {
	repo        storage.EventRepository
	db          *postgres.DB
	stopMetrics context.CancelFunc
}

func (j journalParts) close() {
	if j.stopMetrics != nil {
		j.stopMetrics()
	}
	if j.db != nil {
		_ = j.db.Close()
	}
}

func (c *Coordinator) openJournal(ctx context.Context) journalParts {
	if repo := c.Journal(); repo != nil {
		return journalParts{repo: repo}
	}
	if c.cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, c.cfg.Database)
		if err == nil {
			err = db.Migrate(ctx)
			if err != nil {
				_ = db.Close()
			}
		}
		if err != nil {
			c.log.Warn("Failed to init event journal database, using memory", "error", err)
		} else {
			metricsCtx, cancel := context.WithCancel(context.Background())
			db.StartMetricsCollector(metricsCtx)
			c.log.Info("Using PostgreSQL event journal")
			return journalParts{repo: postgres.NewEventRepo(db), db: db, stopMetrics: cancel}
		}
	}
	c.log.Info("Using memory event journal")
	return journalParts{repo: memory.NewEventRepo()}
}

func (c *Coordinator) agentConfig() chain.AgentConfig {
	cc := c.cfg.Chain
	return chain.AgentConfig{
		RPCURL:        cc.RPCURL,
		RESTURL:       cc.RESTURL,
		ChainID:       cc.ChainID,
		AddressPrefix: cc.AddressPrefix,
		GasPrice:      cc.GasPrice,
		Denom:         cc.Denom,
		ProverPath:    cc.ProverPath,
		AgentName:     cc.AgentName,
		Timeout:       cc.Timeout,
	}
}

func (c *Coordinator) onCommitment(ev domain.CommitmentObserved) {
	c.emit(domain.NewCommitmentEvent(ev))
}

func (c *Coordinator) onAgentRegistered(ev domain.AgentRegistered) {
	c.emit(domain.NewRegistrationEvent(ev))
}

func (c *Coordinator) emit(event *domain.Event) {
	c.mu.RLock()
	e := c.emitter
	c.mu.RUnlock()
	if e == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	if err := e.Emit(ctx, event); err != nil {
		c.log.Warn("Failed to emit event", "kind", event.Kind, "error", err)
	}
}

// Shutdown cancels an in-flight Start and waits for it, stops the event
// stream, then releases the identity, then closes the remaining resources.
// It is idempotent and safe without Start.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	cancelStart, startDone := c.cancelStart, c.startDone
	c.mu.Unlock()

	c.log.Info("Shutting down chain features")
	var errs []error

	if cancelStart != nil {
		cancelStart()
		select {
		case <-startDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for start: %w", ctx.Err()))
		}
	}

	// Stop waits for in-flight handlers, which take the read lock to emit.
	c.mu.RLock()
	s := c.stream
	c.mu.RUnlock()
	if s != nil {
		s.Stop()
	}

	// Serialize with an in-flight chain_register.
	c.registerLock.Lock()
	c.mu.RLock()
	handle := c.handle
	c.mu.RUnlock()
	if handle != nil {
		if err := handle.Agent.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("agent shutdown: %w", err))
		}
	}
	c.mu.Lock()
	c.handle = nil
	c.stream = nil
	c.mu.Unlock()
	c.registerLock.Unlock()

	c.monitor.Stop()
	if c.healthServer != nil {
		if err := c.healthServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server: %w", err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emitter != nil {
		if err := c.emitter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("emitters: %w", err))
		}
	}
	if c.stopMetrics != nil {
		c.stopMetrics()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if c.restClient != nil {
		if err := c.restClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("chain client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CurrentAddress returns the agent address, or "" without an identity.
func (c *Coordinator) CurrentAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.handle == nil {
		return ""
	}
	return c.handle.Address
}

// Identity returns the bootstrap outcome, or nil without an identity.
func (c *Coordinator) Identity() *identity.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.handle == nil {
		return nil
	}
	r := c.handle.Result()
	return &r
}

// CurrentShieldedBalanceDisplay renders the shielded balance for humans,
// e.g. "750 uagent (2 notes)", or "unavailable".
func (c *Coordinator) CurrentShieldedBalanceDisplay(ctx context.Context) string {
	agent := c.Agent()
	if agent == nil {
		return "unavailable"
	}
	balance, err := agent.GetShieldedBalance(ctx)
	if err != nil {
		c.log.Debug("Shielded balance unavailable", "error", err)
		return "unavailable"
	}
	notes := "notes"
	if balance.Notes == 1 {
		notes = "note"
	}
	return fmt.Sprintf("%s %s (%d %s)", balance.Amount, balance.Denom, balance.Notes, notes)
}

// Client returns the chain client, or nil before Start or when disabled.
func (c *Coordinator) Client() chain.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Agent returns the identity's agent, or nil without an identity.
func (c *Coordinator) Agent() chain.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.handle == nil {
		return nil
	}
	return c.handle.Agent
}

// StreamState returns the event stream state; Disconnected when no stream runs.
func (c *Coordinator) StreamState() domain.ConnectionState {
	c.mu.RLock()
	s := c.stream
	c.mu.RUnlock()
	if s == nil {
		return domain.StateDisconnected
	}
	return s.State()
}

func (c *Coordinator) streamReconnects() int64 {
	c.mu.RLock()
	s := c.stream
	c.mu.RUnlock()
	if s == nil {
		return 0
	}
	return s.Reconnects()
}

func (c *Coordinator) providers() []provider.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.restClient == nil {
		return nil
	}
	return c.restClient.Providers()
}

// journalHealth pings the database journal; the memory journal is always healthy.
func (c *Coordinator) journalHealth(ctx context.Context) error {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil {
		return nil
	}
	return db.Health(ctx)
}

// Tools returns the tool registry bound to this coordinator.
func (c *Coordinator) Tools() *tools.Registry {
	return c.tools
}

// Denom returns the configured base denomination.
func (c *Coordinator) Denom() string {
	return c.cfg.Chain.Denom
}

// Heartbeat returns the latest liveness result.
func (c *Coordinator) Heartbeat(ctx context.Context) domain.HeartbeatResult {
	return c.monitor.Latest(ctx)
}

// Journal returns the event journal, or nil before Start.
func (c *Coordinator) Journal() storage.EventRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.journal
}

// Rebootstrap retries registration for an unregistered identity.
func (c *Coordinator) Rebootstrap(ctx context.Context) (*identity.Result, error) {
	c.registerLock.Lock()
	defer c.registerLock.Unlock()

	c.mu.RLock()
	handle, stopped := c.handle, c.stopped
	c.mu.RUnlock()
	if stopped || handle == nil {
		return nil, chain.ErrNotInitialized
	}

	next := identity.Register(ctx, handle, c.log)
	c.mu.Lock()
	c.handle = next
	c.mu.Unlock()

	r := next.Result()
	return &r, nil
}
