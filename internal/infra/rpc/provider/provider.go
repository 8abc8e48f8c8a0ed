// Package provider implements node transport providers.
//
// This package contains:
//   - Provider interface: core abstraction for a node endpoint
//   - HTTPProvider: REST over HTTP implementation
//   - ProviderMonitor: health and throttle tracking
package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is matched by errors.Is for HTTP 404 responses.
var ErrNotFound = errors.New("not found")

// Provider defines the core interface for a node endpoint.
// It serves as the base abstraction for health checking, metrics, and lifecycle management.
type Provider interface {
	// GetName returns provider identifier (e.g., "rest", "rpc")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Close cleans up resources
	Close() error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}

// HTTPError is returned for non-success HTTP responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
