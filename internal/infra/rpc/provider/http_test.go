package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestHTTPProvider_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cosmos/bank/v1beta1/balances/agent1abc/by_denom" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("denom") != "uagent" {
			t.Errorf("expected denom=uagent, got %s", r.URL.Query().Get("denom"))
		}
		_, _ = w.Write([]byte(`{"balance":{"denom":"uagent","amount":"42"}}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("rest", server.URL+"/", 5*time.Second)

	var out struct {
		Balance struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balance"`
	}
	err := p.Get(context.Background(), "/cosmos/bank/v1beta1/balances/agent1abc/by_denom",
		url.Values{"denom": {"uagent"}}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Balance.Amount != "42" {
		t.Errorf("expected amount 42, got %s", out.Balance.Amount)
	}
	if !p.GetHealth().Available {
		t.Error("expected provider to be available")
	}
}

func TestHTTPProvider_GetNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":5,"message":"agent not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	p := NewHTTPProvider("rest", server.URL, 5*time.Second)

	err := p.Get(context.Background(), "zkagent/agents/v1/agents/agent1none", nil, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected HTTPError 404, got %v", err)
	}
}

func TestHTTPProvider_ServerErrorCountsAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPProvider("rest", server.URL, 5*time.Second)

	if err := p.Get(context.Background(), "status", nil, nil); err == nil {
		t.Fatal("expected error")
	}
	health := p.GetHealth()
	if health.ErrorRate != 1 {
		t.Errorf("expected error rate 1, got %f", health.ErrorRate)
	}
	if health.Available {
		t.Error("expected provider to be marked unavailable")
	}
}
