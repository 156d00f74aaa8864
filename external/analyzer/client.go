package analyzer

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/delphiedge/gridline/internal/domain/board"
	"github.com/delphiedge/gridline/internal/platform/logging"
	"github.com/delphiedge/gridline/internal/platform/resilience"
	"github.com/delphiedge/gridline/internal/usecase"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultChunkSize  = 25
	defaultMaxWorkers = 4
	analyzePath       = "/analyze"
)

var errAnalyzerTransient = crerr.New("analyzer transient failure")

// Insight is one per-game verdict from the downstream analyzer.
type Insight struct {
	EventID    string  `json:"eventId"`
	Pick       string  `json:"pick"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

type analyzeRequest struct {
	Games []board.Event `json:"games"`
}

type analyzeResponse struct {
	Insights []Insight `json:"insights"`
}

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	ChunkSize      int
	MaxWorkers     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client posts canonical events to the analyzer in bounded-concurrency
// chunks and collects the per-game insights.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	chunkSize      int
	maxWorkers     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	chunkSize := cfg.ChunkSize
	if chunkSize < 1 {
		chunkSize = defaultChunkSize
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = defaultMaxWorkers
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		chunkSize:      chunkSize,
		maxWorkers:     maxWorkers,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// Analyze sends every game and returns the combined insights in input order.
// One failed chunk fails the whole call: a partial insight set would silently
// drop games from downstream betting decisions.
func (c *Client) Analyze(ctx context.Context, games []board.Event) ([]Insight, error) {
	if len(games) == 0 {
		return nil, nil
	}

	chunks := chunkEvents(games, c.chunkSize)
	results := make([][]Insight, len(chunks))
	errs := make([]error, len(chunks))

	workers := min(c.maxWorkers, len(chunks))
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, crerr.Wrap(err, "create analyzer worker pool")
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range chunks {
		i := i
		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = c.postChunk(ctx, chunks[i])
		}); submitErr != nil {
			wg.Done()
			errs[i] = crerr.Wrap(submitErr, "submit analyzer chunk")
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	insights := make([]Insight, 0, len(games))
	for _, chunk := range results {
		insights = append(insights, chunk...)
	}
	return insights, nil
}

// Publish implements the fire-and-forget notification used after a scrape:
// insights are requested so the analyzer warms its model, then dropped.
func (c *Client) Publish(ctx context.Context, result usecase.ScrapeResult) error {
	insights, err := c.Analyze(ctx, result.Games)
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "analyzer processed scrape result",
		"league", result.League,
		"week", result.Week,
		"games", len(result.Games),
		"insights", len(insights),
	)
	return nil
}

func (c *Client) postChunk(ctx context.Context, games []board.Event) ([]Insight, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "analyzer circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("analyzer is temporarily unavailable: %w", err)
		}
	}

	body, err := sonic.Marshal(analyzeRequest{Games: games})
	if err != nil {
		return nil, crerr.Wrap(err, "marshal analyzer payload")
	}

	fullURL := c.baseURL + analyzePath
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("analyzer.url", fullURL),
			attribute.Int("analyzer.games", len(games)),
			attribute.String("analyzer.request_preview", requestPreview(fullURL, body)),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, crerr.Wrap(err, "create analyzer request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		callErr := fmt.Errorf("%w: post %s: %v", errAnalyzerTransient, fullURL, err)
		c.recordCircuitResult(callErr)
		return nil, callErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if readErr != nil {
		callErr := fmt.Errorf("%w: read analyzer response: %v", errAnalyzerTransient, readErr)
		c.recordCircuitResult(callErr)
		return nil, callErr
	}

	if resp.StatusCode/100 != 2 {
		excerpt := strings.TrimSpace(string(raw))
		if len(excerpt) > 240 {
			excerpt = excerpt[:240] + "..."
		}
		callErr := fmt.Errorf("analyzer status=%d body=%s", resp.StatusCode, excerpt)
		if isRetryableStatus(resp.StatusCode) {
			callErr = fmt.Errorf("%w: %v", errAnalyzerTransient, callErr)
		}
		c.recordCircuitResult(callErr)
		return nil, callErr
	}

	var decoded analyzeResponse
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		c.recordCircuitResult(nil)
		return nil, crerr.Wrap(err, "decode analyzer response")
	}

	c.recordCircuitResult(nil)
	return decoded.Insights, nil
}

func (c *Client) recordCircuitResult(err error) {
	if !c.circuitEnabled {
		return
	}
	if err != nil && stderrors.Is(err, errAnalyzerTransient) {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

// requestPreview renders a shortened curl-style line for trace attributes.
func requestPreview(fullURL string, body []byte) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("curl -X POST ")
	_, _ = buf.WriteString(fullURL)
	_, _ = buf.WriteString(" -H 'Content-Type: application/json' -d '")
	text := string(body)
	if len(text) > 2048 {
		text = text[:2048] + "..."
	}
	_, _ = buf.WriteString(text)
	_ = buf.WriteByte('\'')

	return buf.String()
}

func chunkEvents(games []board.Event, size int) [][]board.Event {
	chunks := make([][]board.Event, 0, (len(games)+size-1)/size)
	for start := 0; start < len(games); start += size {
		end := min(start+size, len(games))
		chunks = append(chunks, games[start:end])
	}
	return chunks
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
