package cfbd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/delphiedge/gridline/internal/domain/board"
	"github.com/delphiedge/gridline/internal/platform/logging"
	"github.com/delphiedge/gridline/internal/platform/resilience"
	"github.com/delphiedge/gridline/internal/usecase"
)

const (
	ProviderName = "cfbd"

	defaultBaseURL = "https://api.collegefootballdata.com"
	defaultTimeout = 12 * time.Second
)

var errCFBDTransient = crerr.New("fallback provider transient failure")

// lineRecord is the upstream per-game betting shape: one schedule row with a
// list of per-book lines. Spread and overUnder are null when a book has not
// priced the game.
type lineRecord struct {
	ID        int64       `json:"id"`
	Season    int         `json:"season"`
	Week      int         `json:"week"`
	HomeTeam  string      `json:"homeTeam"`
	AwayTeam  string      `json:"awayTeam"`
	StartDate string      `json:"startDate"`
	Lines     []lineEntry `json:"lines"`
}

type lineEntry struct {
	Provider        string   `json:"provider"`
	Spread          *float64 `json:"spread"`
	OverUnder       *float64 `json:"overUnder"`
	FormattedSpread string   `json:"formattedSpread"`
}

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client is the unauthenticated fallback provider: a schedule source whose
// rows carry partial odds. One call serves both roles.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
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

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		maxRetries:     max(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) Provider() string { return ProviderName }

// FetchGames returns the week's schedule with whatever lines the books have
// posted. Rows missing team names, and rows the upstream filed under a
// different week, are logged and skipped rather than coerced.
func (c *Client) FetchGames(ctx context.Context, league string, week, year int) ([]board.RawGame, error) {
	if !strings.EqualFold(strings.TrimSpace(league), "cfb") {
		return nil, &usecase.ProviderError{Provider: ProviderName, Message: fmt.Sprintf("league %q not served", league)}
	}

	query := map[string]string{
		"year":       strconv.Itoa(year),
		"week":       strconv.Itoa(week),
		"seasonType": "regular",
	}

	var records []lineRecord
	if err := c.doJSON(ctx, "/lines", query, &records); err != nil {
		return nil, err
	}

	games := make([]board.RawGame, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record.HomeTeam) == "" || strings.TrimSpace(record.AwayTeam) == "" {
			c.logger.WarnContext(ctx, "skipping line record without team names", "game_id", record.ID)
			continue
		}
		if record.Week != 0 && record.Week != week {
			c.logger.WarnContext(ctx, "skipping line record filed under different week",
				"game_id", record.ID,
				"requested_week", week,
				"record_week", record.Week,
			)
			continue
		}

		game := board.RawGame{
			Home:    record.HomeTeam,
			Away:    record.AwayTeam,
			Kickoff: parseKickoff(record.StartDate),
		}
		// First book with any number wins; the pair stays within one book.
		for _, line := range record.Lines {
			if line.Spread == nil && line.OverUnder == nil {
				continue
			}
			game.Spread = line.Spread
			game.Total = line.OverUnder
			break
		}
		games = append(games, game)
	}

	return games, nil
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "fallback provider circuit breaker rejected request", "state", c.breaker.State())
			return &usecase.ProviderError{Provider: ProviderName, Message: "circuit breaker open"}
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	out, err, _ := c.flight.Do(fullURL, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && stderrors.Is(reqErr, errCFBDTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return &usecase.ProviderError{Provider: ProviderName, Message: fmt.Sprintf("decode provider payload: %v", err)}
	}

	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %w", errCFBDTransient, &usecase.ProviderError{
				Provider: ProviderName,
				Message:  "send request: " + err.Error(),
			})
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: %w", errCFBDTransient, &usecase.ProviderError{
					Provider: ProviderName,
					Message:  "read response body: " + readErr.Error(),
				})
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			default:
				perr := &usecase.ProviderError{
					Provider:   ProviderName,
					StatusCode: resp.StatusCode,
					Message:    abbreviateBody(raw),
				}
				if !isRetryableStatus(resp.StatusCode) {
					c.logger.WarnContext(ctx, "fallback provider request rejected", "url", fullURL, "status", resp.StatusCode)
					return nil, perr
				}
				lastErr = fmt.Errorf("%w: %w", errCFBDTransient, perr)
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = &usecase.ProviderError{Provider: ProviderName, Message: "request failed"}
	}
	c.logger.WarnContext(ctx, "fallback provider request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func parseKickoff(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
