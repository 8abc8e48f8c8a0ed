// Package health probes node liveness and exposes the agent's health over HTTP and gRPC.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/zkagent/internal/core/domain"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 10 * time.Second

// maxStatusBody caps how much of a /status body is read.
const maxStatusBody = 1 << 20

// Prober performs one-shot liveness checks against a node's /status endpoint.
// It is stateless and safe for concurrent use.
type Prober struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewProber creates a prober. A non-positive timeout uses DefaultProbeTimeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Probe issues a single GET to {nodeURL}/status. It never returns an error;
// failures are reported in the result.
func (p *Prober) Probe(ctx context.Context, nodeURL string) domain.HeartbeatResult {
	result := domain.HeartbeatResult{NodeURL: nodeURL}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := strings.TrimRight(nodeURL, "/") + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		result.Error = err.Error()
		result.CheckedAt = time.Now()
		return result
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		result.Error = err.Error()
		result.CheckedAt = time.Now()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("http %d", resp.StatusCode)
		result.CheckedAt = time.Now()
		return result
	}

	result.Alive = true
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err == nil {
		result.Height = parseHeight(body)
	}
	result.CheckedAt = time.Now()
	return result
}

// Probe is a convenience wrapper using a default Prober.
func Probe(ctx context.Context, nodeURL string) domain.HeartbeatResult {
	return NewProber(0).Probe(ctx, nodeURL)
}

type statusBody struct {
	Result struct {
		SyncInfo struct {
			LatestBlockHeight json.RawMessage `json:"latest_block_height"`
		} `json:"sync_info"`
	} `json:"result"`
}

// parseHeight accepts latest_block_height as a JSON string or number.
// Anything else yields nil.
func parseHeight(body []byte) *int64 {
	var status statusBody
	if err := json.Unmarshal(body, &status); err != nil {
		return nil
	}
	raw := bytes.TrimSpace(status.Result.SyncInfo.LatestBlockHeight)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
	}
	height, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil
	}
	return &height
}
