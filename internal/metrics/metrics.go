package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamState is 1 for the current connection state of the node stream, 0 for the others
	StreamState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zkagent_stream_state",
			Help: "Current node event stream state (1 = active state)",
		},
		[]string{"state"},
	)

	// StreamReconnects tracks scheduled reconnect attempts
	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zkagent_stream_reconnects_total",
			Help: "Total number of scheduled stream reconnect attempts",
		},
	)

	// StreamFrames tracks inbound frames by parse result
	StreamFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkagent_stream_frames_total",
			Help: "Total number of inbound stream frames",
		},
		[]string{"result"}, // parsed, dropped
	)

	// StreamEvents tracks domain events parsed from the stream
	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkagent_stream_events_total",
			Help: "Total number of domain events parsed from the stream",
		},
		[]string{"kind"},
	)

	// HeartbeatAlive is 1 when the last probe found the node alive
	HeartbeatAlive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zkagent_heartbeat_alive",
			Help: "Whether the last heartbeat probe found the node alive",
		},
	)

	// ChainLatestBlock tracks the latest block height reported by the node
	ChainLatestBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zkagent_chain_latest_block",
			Help: "Latest block height reported by the node status endpoint",
		},
	)

	// HeartbeatProbes tracks probes by outcome
	HeartbeatProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkagent_heartbeat_probes_total",
			Help: "Total number of heartbeat probes",
		},
		[]string{"result"}, // alive, dead
	)

	// RPCCallsTotal tracks node REST calls
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkagent_rpc_calls_total",
			Help: "Total number of node RPC/REST calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks node REST errors
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkagent_rpc_errors_total",
			Help: "Total number of node RPC/REST errors",
		},
		[]string{"provider", "error_type"},
	)

	// RPCLatency tracks node call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zkagent_rpc_latency_seconds",
			Help:    "Node RPC/REST call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// ToolCalls tracks tool invocations by outcome
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkagent_tool_calls_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)

	// Registrations tracks bootstrap registration outcomes
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkagent_registrations_total",
			Help: "Total number of identity bootstrap outcomes",
		},
		[]string{"outcome"}, // already_registered, registered, rejected, failed, skipped
	)

	// DBConnectionPoolUsage tracks journal connection pool usage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zkagent_db_connection_pool_usage_percent",
			Help: "Percentage of open journal database connections",
		},
	)
)
