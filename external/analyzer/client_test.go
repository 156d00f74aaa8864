package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/delphiedge/gridline/internal/domain/board"
	"github.com/delphiedge/gridline/internal/platform/logging"
	"github.com/delphiedge/gridline/internal/platform/resilience"
	"github.com/delphiedge/gridline/internal/usecase"
)

func testEvents(n int) []board.Event {
	events := make([]board.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, board.Event{
			ID:       "cfb:home@away",
			League:   "cfb",
			Week:     2,
			HomeTeam: "Home",
			AwayTeam: "Away",
			TeamForm: map[string]string{},
			Notes:    []string{},
		})
	}
	return events
}

func newTestClient(t *testing.T, chunkSize int, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		BaseURL:        server.URL,
		Timeout:        2 * time.Second,
		ChunkSize:      chunkSize,
		MaxWorkers:     2,
		Logger:         logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: false},
	})
}

func TestAnalyze_ChunksRequests(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req analyzeRequest
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Games) == 0 || len(req.Games) > 2 {
			t.Errorf("chunk size out of bounds: %d", len(req.Games))
		}

		insights := make([]Insight, 0, len(req.Games))
		for _, game := range req.Games {
			insights = append(insights, Insight{EventID: game.ID, Pick: "home", Confidence: 0.6})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = sonic.ConfigDefault.NewEncoder(w).Encode(analyzeResponse{Insights: insights})
	})

	insights, err := client.Analyze(context.Background(), testEvents(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insights) != 5 {
		t.Fatalf("expected 5 insights, got %d", len(insights))
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("expected 3 chunked requests, got %d", got)
	}
}

func TestAnalyze_EmptyInputSkipsNetwork(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, 2, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
		w.WriteHeader(http.StatusOK)
	})

	insights, err := client.Analyze(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insights != nil {
		t.Fatalf("expected no insights, got %v", insights)
	}
}

func TestAnalyze_FailedChunkFailsCall(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, 2, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := client.Analyze(context.Background(), testEvents(3)); err == nil {
		t.Fatal("expected error when a chunk fails")
	}
}

func TestPublish_ReportsAnalyzerFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, 25, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.Publish(context.Background(), usecase.ScrapeResult{
		League: "cfb",
		Week:   2,
		Games:  testEvents(1),
	})
	if err == nil {
		t.Fatal("expected publish to surface the failure")
	}
}
