// Package classifier wraps the hosted Real/Fake/Misleading classifier
// endpoint. Any failure degrades to a fixed prior distribution so the
// ensemble always has a classifier signal.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"veridex/internal/llm"
	"veridex/internal/model"
)

// Client calls the classifier's predict endpoint
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	retry      llm.RetryPolicy
	logger     *zap.Logger
}

// Wire shapes of the predict contract
type predictRequest struct {
	Instances []model.Metadata `json:"instances"`
}

type predictResponse struct {
	Predictions []struct {
		Classes []string  `json:"classes"`
		Scores  []float64 `json:"scores"`
	} `json:"predictions"`
}

// NewClient creates a classifier client from configuration
func NewClient(cfg model.ClassifierConfig, retry llm.RetryPolicy, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     logger,
	}
}

// Predict returns the probability triple for the given article metadata.
// Timeouts, bad statuses, and malformed bodies all fall back to the fixed
// prior; Predict never returns an error.
func (c *Client) Predict(ctx context.Context, meta model.Metadata) model.ClassifierScores {
	if c.endpoint == "" {
		return model.FallbackClassifierScores()
	}

	var parsed predictResponse
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.predictOnce(ctx, meta, &parsed)
	})
	if err != nil {
		c.logger.Warn("classifier unavailable, using fallback prior", zap.Error(err))
		return model.FallbackClassifierScores()
	}

	return extractScores(parsed)
}

func (c *Client) predictOnce(ctx context.Context, meta model.Metadata, out *predictResponse) error {
	payload, err := json.Marshal(predictRequest{Instances: []model.Metadata{meta}})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("classifier status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// extractScores maps the (classes, scores) pair onto the fixed triple,
// falling back per-label when the shape is off.
func extractScores(parsed predictResponse) model.ClassifierScores {
	scores := model.FallbackClassifierScores()
	if len(parsed.Predictions) == 0 {
		return scores
	}

	pred := parsed.Predictions[0]
	if len(pred.Classes) != len(pred.Scores) {
		return scores
	}

	for i, class := range pred.Classes {
		switch strings.ToLower(class) {
		case "real":
			scores.Real = pred.Scores[i]
		case "fake":
			scores.Fake = pred.Scores[i]
		case "misleading":
			scores.Misleading = pred.Scores[i]
		}
	}

	return scores
}
