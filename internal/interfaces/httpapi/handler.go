package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/delphiedge/gridline/external/analyzer"
	"github.com/delphiedge/gridline/internal/domain/board"
	"github.com/delphiedge/gridline/internal/platform/logging"
	"github.com/delphiedge/gridline/internal/usecase"
)

const maxRequestBodyBytes = 4 << 20

// InsightAnalyzer produces betting insights for a slate of events. It is
// optional: when no analyzer is configured the /analyze route responds
// with analyzer_unavailable.
type InsightAnalyzer interface {
	Analyze(ctx context.Context, events []board.Event) ([]analyzer.Insight, error)
}

type Handler struct {
	scrapeService *usecase.ScrapeService
	analyzer      InsightAnalyzer
	logger        *logging.Logger
	validator     *validator.Validate
}

func NewHandler(scrapeService *usecase.ScrapeService, insightAnalyzer InsightAnalyzer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		scrapeService: scrapeService,
		analyzer:      insightAnalyzer,
		logger:        logger,
		validator:     validator.New(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_, span := startSpan(r.Context(), "httpapi.Handler.Health")
	defer span.End()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Scrape")
	defer span.End()

	query := r.URL.Query()
	result, err := h.scrapeService.Scrape(ctx, query.Get("league"), query.Get("week"), query.Get("year"))
	if err != nil {
		h.logger.ErrorContext(ctx, "scrape failed",
			"league", query.Get("league"),
			"week", query.Get("week"),
			"year", query.Get("year"),
			"error", err,
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type analyzeRequest struct {
	Games []board.Event `json:"games" validate:"required,min=1"`
}

type analyzeResponse struct {
	Insights []analyzer.Insight `json:"insights"`
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Analyze")
	defer span.End()

	if h.analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: usecase.CodeAnalyzerUnavailable, Detail: "no analyzer configured"})
		return
	}

	var req analyzeRequest
	if err := h.decodeRequest(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Detail: err.Error()})
		return
	}

	insights, err := h.analyzer.Analyze(ctx, req.Games)
	if err != nil {
		h.logger.ErrorContext(ctx, "analyze failed", "games", len(req.Games), "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: usecase.CodeAnalyzerUnavailable, Detail: err.Error()})
		return
	}

	if insights == nil {
		insights = []analyzer.Insight{}
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Insights: insights})
}

func (h *Handler) decodeRequest(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("request body is required")
	}
	if err := sonic.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if err := h.validator.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			return fmt.Errorf("field %s failed validation: %s", strings.ToLower(field.Field()), field.Tag())
		}
		return err
	}
	return nil
}
