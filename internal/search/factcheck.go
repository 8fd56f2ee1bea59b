package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"veridex/internal/extract"
	"veridex/internal/model"
)

const (
	maxFactCheckClaims  = 5
	maxReviewsPerClaim  = 2
	factCheckClaimChars = 150
)

// FactCheckConnector queries a professional fact-check search service and
// buckets publisher ratings into a corpus-level status. Lookup never
// returns an error: every failure mode maps to a well-formed summary.
type FactCheckConnector struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Wire shapes of the claims:search response
type factCheckResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
			} `json:"publisher"`
			TextualRating string `json:"textualRating"`
			Title         string `json:"title"`
			URL           string `json:"url"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// NewFactCheckConnector creates a fact-check connector from configuration
func NewFactCheckConnector(cfg model.FactCheckConfig, logger *zap.Logger) *FactCheckConnector {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 6 * time.Second
	}

	return &FactCheckConnector{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Lookup queries fact-checks for the text's most checkable sentence and
// derives the corpus status from rating proportions.
func (c *FactCheckConnector) Lookup(ctx context.Context, text string) model.FactCheckSummary {
	query := extract.FactCheckQuery(text)

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("query", query)
	params.Set("pageSize", "5")
	params.Set("languageCode", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return model.EmptyFactCheckSummary(model.FactCheckError)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("fact-check lookup failed", zap.Error(err))
		return model.EmptyFactCheckSummary(model.FactCheckError)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("fact-check bad status", zap.Int("status", resp.StatusCode))
		return model.EmptyFactCheckSummary(model.FactCheckAPIError)
	}

	var parsed factCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.EmptyFactCheckSummary(model.FactCheckError)
	}

	return summarize(parsed)
}

// summarize buckets each review rating and derives the corpus status.
func summarize(parsed factCheckResponse) model.FactCheckSummary {
	if len(parsed.Claims) == 0 {
		return model.EmptyFactCheckSummary(model.FactCheckNone)
	}

	summary := model.FactCheckSummary{FactChecks: []model.FactCheckRecord{}}

	claims := parsed.Claims
	if len(claims) > maxFactCheckClaims {
		claims = claims[:maxFactCheckClaims]
	}

	for _, claim := range claims {
		snippet := claim.Text
		if len(snippet) > factCheckClaimChars {
			snippet = snippet[:factCheckClaimChars]
		}

		reviews := claim.ClaimReview
		if len(reviews) > maxReviewsPerClaim {
			reviews = reviews[:maxReviewsPerClaim]
		}

		for _, review := range reviews {
			rating := strings.ToLower(review.TextualRating)
			category := BucketRating(rating)

			switch category {
			case model.RatingFalse:
				summary.FalseCount++
			case model.RatingTrue:
				summary.TrueCount++
			case model.RatingMixed:
				summary.MixedCount++
			}

			publisher := review.Publisher.Name
			if publisher == "" {
				publisher = "Unknown"
			}

			summary.FactChecks = append(summary.FactChecks, model.FactCheckRecord{
				Claim:     snippet,
				Publisher: publisher,
				Rating:    rating,
				Category:  category,
				Title:     review.Title,
				URL:       review.URL,
			})
		}
	}

	summary.Total = len(summary.FactChecks)
	if summary.Total == 0 {
		return model.EmptyFactCheckSummary(model.FactCheckNone)
	}

	falseRatio := float64(summary.FalseCount) / float64(summary.Total)
	trueRatio := float64(summary.TrueCount) / float64(summary.Total)

	switch {
	case falseRatio >= 0.6:
		summary.Status = model.FactCheckFalse
	case trueRatio >= 0.6:
		summary.Status = model.FactCheckTrue
	case summary.MixedCount >= 2:
		summary.Status = model.FactCheckMixed
	default:
		summary.Status = model.FactCheckInconclusive
	}

	return summary
}

// Fixed keyword table for bucketing publisher rating strings.
var (
	falseWords = []string{"false", "fake", "incorrect", "misleading", "pants"}
	trueWords  = []string{"true", "correct", "accurate", "verified"}
	mixedWords = []string{"mixed", "partial", "mostly", "half"}
)

// BucketRating maps a lowercased textual rating to a category by
// substring match, checking false keywords first so compound ratings like
// "mostly false" bucket as false.
func BucketRating(rating string) model.RatingCategory {
	for _, w := range falseWords {
		if strings.Contains(rating, w) {
			return model.RatingFalse
		}
	}
	for _, w := range trueWords {
		if strings.Contains(rating, w) {
			return model.RatingTrue
		}
	}
	for _, w := range mixedWords {
		if strings.Contains(rating, w) {
			return model.RatingMixed
		}
	}
	return model.RatingUnknown
}
