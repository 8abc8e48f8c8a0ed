package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/zkagent/internal/metrics"
)

// maxErrorBody caps how much of an error response is kept in HTTPError.
const maxErrorBody = 512

// HTTPProvider implements Provider for REST over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int

	Monitor *ProviderMonitor
}

// NewHTTPProvider creates a new HTTP-based provider rooted at endpoint.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
		Monitor: NewProviderMonitor(),
	}
}

// Get issues a GET to endpoint+path and decodes the JSON body into out.
// out may be nil when only the status matters.
func (p *HTTPProvider) Get(ctx context.Context, path string, query url.Values, out any) error {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(p.name, path).Inc()

	// Pre-call checks
	if status := p.Monitor.CheckProviderStatus(); status == StatusThrottled || status == StatusBlocked {
		return fmt.Errorf("provider %s unavailable, retry after: %v", p.name, p.Monitor.GetRetryAfter())
	}

	target := p.endpoint + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		p.recordFailure("request")
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.recordFailure("transport")
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	latency := time.Since(start)
	metrics.RPCLatency.WithLabelValues(p.name, path).Observe(latency.Seconds())

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		p.Monitor.RecordThrottle(http.StatusTooManyRequests, retryAfter)
		p.recordFailure("throttled")
		return fmt.Errorf("rate limited (429), retry after: %s", retryAfter)
	}

	// IP blocked detection
	if resp.StatusCode == http.StatusForbidden {
		p.Monitor.RecordThrottle(http.StatusForbidden, "")
		p.recordFailure("blocked")
		return fmt.Errorf("ip blocked (403)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.recordFailure("read")
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		// A 404 is an answer, not a provider fault.
		if resp.StatusCode == http.StatusNotFound {
			p.recordSuccess(latency)
		} else {
			p.recordFailure("status")
		}
		if p.Monitor.DetectThrottlePattern(msg) {
			return fmt.Errorf("throttle detected in response: %s", msg)
		}
		return &HTTPError{StatusCode: resp.StatusCode, Body: msg}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			p.recordFailure("decode")
			return fmt.Errorf("parse response: %w", err)
		}
	}

	p.Monitor.RecordRequest(latency)
	p.recordSuccess(latency)
	return nil
}

// GetName returns the provider's name.
func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth returns the provider's health status.
func (p *HTTPProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	health := p.health
	stats := p.Monitor.GetStats()
	health.MonitorStats = &stats
	return health
}

// IsAvailable checks if the provider is available.
func (p *HTTPProvider) IsAvailable() bool {
	status := p.Monitor.CheckProviderStatus()
	return status == StatusHealthy || status == StatusDegraded
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) recordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true

	if p.requestCount > 0 {
		p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	}
	if p.successCount > 0 {
		p.health.Latency = p.totalLatency / time.Duration(p.successCount)
	}
}

func (p *HTTPProvider) recordFailure(errorType string) {
	metrics.RPCErrorsTotal.WithLabelValues(p.name, errorType).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()

	if p.requestCount > 0 {
		p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	}

	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}
