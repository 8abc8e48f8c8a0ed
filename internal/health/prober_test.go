package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func statusServer(t *testing.T, code int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProbe_HeightAsString(t *testing.T) {
	server := statusServer(t, http.StatusOK, `{"result":{"sync_info":{"latest_block_height":"12345"}}}`)

	result := NewProber(time.Second).Probe(context.Background(), server.URL)
	if !result.Alive {
		t.Fatalf("expected alive, got error %q", result.Error)
	}
	if result.Height == nil || *result.Height != 12345 {
		t.Fatalf("expected height 12345, got %v", result.Height)
	}
	if result.NodeURL != server.URL {
		t.Errorf("expected node url %s, got %s", server.URL, result.NodeURL)
	}
	if result.CheckedAt.IsZero() {
		t.Error("expected checked_at to be set")
	}
}

func TestProbe_HeightAsNumber(t *testing.T) {
	server := statusServer(t, http.StatusOK, `{"result":{"sync_info":{"latest_block_height":77}}}`)

	result := Probe(context.Background(), server.URL+"/")
	if !result.Alive || result.Height == nil || *result.Height != 77 {
		t.Fatalf("expected alive with height 77, got %+v", result)
	}
}

func TestProbe_AliveWithoutHeight(t *testing.T) {
	bodies := []string{
		`{"result":{"sync_info":{}}}`,
		`{"result":{"sync_info":{"latest_block_height":"abc"}}}`,
		`{"result":{"sync_info":{"latest_block_height":1.5}}}`,
		`{"result":{"sync_info":{"latest_block_height":null}}}`,
		`<html>not json</html>`,
		``,
	}
	for _, body := range bodies {
		server := statusServer(t, http.StatusOK, body)
		result := NewProber(time.Second).Probe(context.Background(), server.URL)
		if !result.Alive {
			t.Errorf("body %q: expected alive", body)
		}
		if result.Height != nil {
			t.Errorf("body %q: expected no height, got %d", body, *result.Height)
		}
		if result.Error != "" {
			t.Errorf("body %q: expected no error, got %q", body, result.Error)
		}
	}
}

func TestProbe_NonSuccessStatus(t *testing.T) {
	server := statusServer(t, http.StatusServiceUnavailable, `{}`)

	result := NewProber(time.Second).Probe(context.Background(), server.URL)
	if result.Alive {
		t.Fatal("expected not alive")
	}
	if result.Error != "http 503" {
		t.Errorf("expected error %q, got %q", "http 503", result.Error)
	}
	if result.Height != nil {
		t.Error("expected no height")
	}
}

func TestProbe_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	result := NewProber(time.Second).Probe(context.Background(), url)
	if result.Alive {
		t.Fatal("expected not alive")
	}
	if result.Error == "" {
		t.Error("expected transport error text")
	}
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	result := NewProber(50*time.Millisecond).Probe(context.Background(), server.URL)
	if result.Alive {
		t.Fatal("expected not alive")
	}
	if !strings.Contains(result.Error, "deadline") {
		t.Errorf("expected deadline error, got %q", result.Error)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("probe did not respect timeout")
	}
}

func TestProbe_Concurrent(t *testing.T) {
	server := statusServer(t, http.StatusOK, `{"result":{"sync_info":{"latest_block_height":"5"}}}`)
	prober := NewProber(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r := prober.Probe(context.Background(), server.URL); !r.Alive {
				t.Errorf("expected alive, got %q", r.Error)
			}
		}()
	}
	wg.Wait()
}
