package provider

import (
	"testing"
	"time"
)

func TestMonitorAccumulation(t *testing.T) {
	m := NewProviderMonitor()

	m.RecordRequest(100 * time.Millisecond)

	stats := m.GetStats()
	if stats.RequestsLastHour != 1 {
		t.Errorf("Expected 1 request, got %d", stats.RequestsLastHour)
	}

	for i := 0; i < 100; i++ {
		m.RecordRequest(50 * time.Millisecond)
	}

	stats = m.GetStats()
	if stats.RequestsLastHour != 101 {
		t.Errorf("Expected 101 requests, got %d", stats.RequestsLastHour)
	}
	if m.GetRequestCount(time.Minute) != 101 {
		t.Errorf("Expected 101 requests in the last minute, got %d", m.GetRequestCount(time.Minute))
	}
}

func TestMonitorBlockedAfter403(t *testing.T) {
	m := NewProviderMonitor()

	m.RecordThrottle(403, "")

	if status := m.CheckProviderStatus(); status != StatusBlocked {
		t.Errorf("Expected blocked, got %s", status)
	}
	if m.GetRetryAfter() <= 0 {
		t.Error("Expected a positive retry-after")
	}
}

func TestMonitorThrottledAfterRepeated429(t *testing.T) {
	m := NewProviderMonitor()

	for i := 0; i < 6; i++ {
		m.RecordThrottle(429, "30")
	}

	if status := m.CheckProviderStatus(); status != StatusThrottled {
		t.Errorf("Expected throttled, got %s", status)
	}
	if after := m.GetRetryAfter(); after > 30*time.Second {
		t.Errorf("Expected retry-after from header (<=30s), got %v", after)
	}
}

func TestMonitorDegradedOnSlowResponses(t *testing.T) {
	m := NewProviderMonitor()

	for i := 0; i < 11; i++ {
		m.RecordRequest(5 * time.Second)
	}

	if status := m.CheckProviderStatus(); status != StatusDegraded {
		t.Errorf("Expected degraded, got %s", status)
	}
}

func TestDetectThrottlePattern(t *testing.T) {
	m := NewProviderMonitor()

	if !m.DetectThrottlePattern("Rate Limit Exceeded for key") {
		t.Error("Expected throttle pattern to match case-insensitively")
	}
	if m.DetectThrottlePattern("account not found") {
		t.Error("Expected no throttle pattern")
	}
}
