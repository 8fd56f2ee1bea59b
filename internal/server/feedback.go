package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"veridex/internal/cache"
	"veridex/internal/extract"
	"veridex/internal/model"
)

// flagRatio is the report share past which an article is marked as
// community flagged
const flagRatio = 0.40

type feedbackRequest struct {
	ArticleID   string `json:"article_id"`
	Feedback    string `json:"feedback"` // YES = reader believes it is fake
	Fingerprint string `json:"fingerprint,omitempty"`
}

// handleFeedback records a reader vote on a cached article. Every vote
// bumps the view counter; a YES vote additionally bumps reports, records
// the anonymized confirmer, and promotes the entry into the verified
// fakes namespace so later lookups hit it first.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ArticleID == "" {
		s.writeError(w, http.StatusBadRequest, "article_id is required")
		return
	}

	record, err := s.documents.Get(r.Context(), req.ArticleID)
	if err != nil {
		s.logger.Error("feedback lookup failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "feedback failed")
		return
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, "unknown article")
		return
	}

	isFakeVote := strings.EqualFold(strings.TrimSpace(req.Feedback), "YES")

	// replace-style writes happen before the counter increment so the
	// $inc is never clobbered by a stale snapshot
	if isFakeVote {
		if err := s.confirmFake(r, record, req.Fingerprint); err != nil {
			s.logger.Warn("verified fake promotion failed",
				zap.String("article_id", record.ID), zap.Error(err))
		}
	}

	views := record.TotalViews + 1
	reports := record.TotalReports
	if isFakeVote {
		reports++
	}
	var flagged *bool
	if !record.CommunityFlagged && views > 0 && float64(reports)/float64(views) > flagRatio {
		t := true
		flagged = &t
	}
	reportDelta := 0
	if isFakeVote {
		reportDelta = 1
	}
	if err := s.documents.Bump(r.Context(), record.ID, 1, reportDelta, flagged); err != nil {
		s.logger.Error("feedback counter update failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "feedback failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"recorded":          true,
		"community_flagged": flagged != nil || record.CommunityFlagged,
	})
}

// confirmFake records the confirmer on the document and mirrors the
// article into the verified fakes vector namespace
func (s *Server) confirmFake(r *http.Request, record *model.ArticleRecord, fingerprint string) error {
	ctx := r.Context()

	if fingerprint != "" {
		anon := extract.AnonUserID(fingerprint)
		if !contains(record.ConfirmedBy, anon) {
			record.ConfirmedBy = append(record.ConfirmedBy, anon)
			record.Verified = true
			if err := s.documents.Upsert(ctx, *record); err != nil {
				return err
			}
		}
	}

	vec := record.Embedding
	if len(vec) == 0 {
		embedded, err := s.embedder.Embed(ctx, record.Text)
		if err != nil {
			return err
		}
		vec = embedded
	}

	return s.vectors.Upsert(ctx, cache.VectorEntry{
		ID:          record.ID,
		Namespace:   cache.NamespaceVerified,
		Embedding:   vec,
		Score:       record.Score,
		Prediction:  model.LabelFake,
		Explanation: record.Explanation,
		Text:        record.Text,
	})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
