package oddsapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
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
	ProviderName = "oddsapi"

	defaultBaseURL = "https://api.the-odds-api.com/v4"
	defaultTimeout = 12 * time.Second

	marketSpreads = "spreads"
	marketTotals  = "totals"
)

// sportKeyByLeague maps our league identifiers to the upstream sport keys.
var sportKeyByLeague = map[string]string{
	"cfb": "americanfootball_ncaaf",
}

var apiKeyParamRegex = regexp.MustCompile(`apiKey=[^&\s"']+`)
var errOddsAPITransient = crerr.New("odds provider transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client is the authenticated primary provider. Schedule and odds live on
// separate endpoints, so it implements both fetch contracts.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
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
		apiKey:         strings.TrimSpace(cfg.APIKey),
		maxRetries:     max(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) Provider() string { return ProviderName }

// FetchGames returns the upcoming slate for the league. The upstream
// schedule endpoint has no week selector; it serves the current slate and the
// orchestrator correlates games by team pair, so week and year only scope the
// request-coalescing key.
func (c *Client) FetchGames(ctx context.Context, league string, week, year int) ([]board.RawGame, error) {
	sportKey, err := c.sportKey(league)
	if err != nil {
		return nil, err
	}

	var records []eventRecord
	path := fmt.Sprintf("/sports/%s/events", sportKey)
	if err := c.doJSON(ctx, path, map[string]string{"dateFormat": "iso"}, week, year, &records); err != nil {
		return nil, err
	}

	games := make([]board.RawGame, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record.HomeTeam) == "" || strings.TrimSpace(record.AwayTeam) == "" {
			c.logger.WarnContext(ctx, "skipping schedule record without team names", "event_id", record.ID)
			continue
		}
		games = append(games, board.RawGame{
			Home:    record.HomeTeam,
			Away:    record.AwayTeam,
			Kickoff: parseKickoff(record.CommenceTime),
		})
	}

	return games, nil
}

// FetchLines returns the current spread/total pairs, one record per game,
// taken from the first book that priced it.
func (c *Client) FetchLines(ctx context.Context, league string, week, year int) ([]board.RawGame, error) {
	sportKey, err := c.sportKey(league)
	if err != nil {
		return nil, err
	}

	var records []oddsRecord
	path := fmt.Sprintf("/sports/%s/odds", sportKey)
	query := map[string]string{
		"regions":    "us",
		"markets":    marketSpreads + "," + marketTotals,
		"oddsFormat": "american",
		"dateFormat": "iso",
	}
	if err := c.doJSON(ctx, path, query, week, year, &records); err != nil {
		return nil, err
	}

	lines := make([]board.RawGame, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record.HomeTeam) == "" || strings.TrimSpace(record.AwayTeam) == "" {
			c.logger.WarnContext(ctx, "skipping odds record without team names", "event_id", record.ID)
			continue
		}
		spread, total := firstBookLines(record)
		lines = append(lines, board.RawGame{
			Home:    record.HomeTeam,
			Away:    record.AwayTeam,
			Kickoff: parseKickoff(record.CommenceTime),
			Spread:  spread,
			Total:   total,
		})
	}

	return lines, nil
}

// firstBookLines extracts the spread/total pair from the first bookmaker
// carrying a usable number. Both numbers come from that one book; the pair is
// never assembled across books.
func firstBookLines(record oddsRecord) (*float64, *float64) {
	for _, book := range record.Bookmakers {
		var spread, total *float64
		for _, market := range book.Markets {
			switch market.Key {
			case marketSpreads:
				for _, out := range market.Outcomes {
					if out.Point != nil && strings.EqualFold(out.Name, record.HomeTeam) {
						spread = out.Point
						break
					}
				}
			case marketTotals:
				for _, out := range market.Outcomes {
					if out.Point != nil && strings.EqualFold(out.Name, "Over") {
						total = out.Point
						break
					}
				}
			}
		}
		if spread != nil || total != nil {
			return spread, total
		}
	}
	return nil, nil
}

func (c *Client) sportKey(league string) (string, error) {
	key, ok := sportKeyByLeague[strings.ToLower(strings.TrimSpace(league))]
	if !ok {
		return "", &usecase.ProviderError{Provider: ProviderName, Message: fmt.Sprintf("no sport mapping for league %q", league)}
	}
	return key, nil
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, week, year int, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "odds provider circuit breaker rejected request", "state", c.breaker.State())
			return &usecase.ProviderError{Provider: ProviderName, Message: "circuit breaker open"}
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("apiKey", c.apiKey)

	fullURL := c.baseURL + path + "?" + values.Encode()

	key := fmt.Sprintf("%s?%s&week=%d&year=%d", path, values.Encode(), week, year)
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && stderrors.Is(reqErr, errOddsAPITransient) {
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
			lastErr = fmt.Errorf("%w: %w", errOddsAPITransient, &usecase.ProviderError{
				Provider: ProviderName,
				Message:  "send request: " + sanitizeSensitiveText(err.Error(), c.apiKey),
			})
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: %w", errOddsAPITransient, &usecase.ProviderError{
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
					c.logger.WarnContext(ctx, "odds provider request rejected", "url", redactAPIURL(fullURL), "status", resp.StatusCode)
					return nil, perr
				}
				lastErr = fmt.Errorf("%w: %w", errOddsAPITransient, perr)
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
	c.logger.WarnContext(ctx, "odds provider request failed", "url", redactAPIURL(fullURL), "error", lastErr)
	return nil, lastErr
}

func parseKickoff(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if apiKey != "" {
		value = strings.ReplaceAll(value, apiKey, "REDACTED")
	}
	return apiKeyParamRegex.ReplaceAllString(value, "apiKey=REDACTED")
}

func redactAPIURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	if query.Has("apiKey") {
		query.Set("apiKey", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
