// Package search holds the web-search and fact-check collaborators.
// Both are best-effort: failures degrade to empty results, never errors
// that could abort the pipeline.
package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"veridex/internal/model"
)

// Result is one raw web search hit
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Client queries a Custom Search style endpoint
type Client struct {
	endpoint   string
	apiKey     string
	cx         string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type searchResponse struct {
	Items []Result `json:"items"`
}

// NewClient creates a web search client from configuration
func NewClient(cfg model.SearchConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		cx:         cfg.CX,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), burst),
		logger:     logger,
	}
}

// Search runs one query and returns up to n results. Best-effort: any
// failure logs and returns an empty list.
func (c *Client) Search(ctx context.Context, query string, n int) []Result {
	if n <= 0 {
		n = 10
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		c.logger.Warn("search request build failed", zap.Error(err))
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("web search failed", zap.String("query", truncate(query, 80)), zap.Error(err))
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("web search bad status", zap.Int("status", resp.StatusCode))
		return nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn("web search decode failed", zap.Error(err))
		return nil
	}

	if len(parsed.Items) > n {
		parsed.Items = parsed.Items[:n]
	}
	return parsed.Items
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
