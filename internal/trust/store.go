// Package trust maintains running credibility scores for web domains.
// Records accumulate monotonically: created on the first high-confidence
// evidence observation, revised by online averaging, never deleted.
package trust

import (
	"context"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"veridex/internal/model"
)

const credibleSetKey = "credible_domains"

// Backend is the persistence contract for trust records
type Backend interface {
	// Get returns the record for a domain, or nil when absent
	Get(ctx context.Context, domain string) (*model.DomainTrustRecord, error)

	// BatchUpsert writes a batch of records in one round trip
	BatchUpsert(ctx context.Context, records []model.DomainTrustRecord) error

	// ListVoted returns every domain with at least minVotes votes
	ListVoted(ctx context.Context, minVotes int) ([]model.DomainTrustRecord, error)
}

// Store fronts a Backend with a short-TTL read cache so the scoring hot
// path never waits on the database. The cache is refreshed wholesale on
// expiry and invalidated immediately after a batched write.
type Store struct {
	backend Backend
	cache   *gocache.Cache
	logger  *zap.Logger
}

// NewStore creates a trust store with the given read-cache TTL
func NewStore(backend Backend, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Store{
		backend: backend,
		cache:   gocache.New(ttl, 10*time.Minute),
		logger:  logger,
	}
}

// Score returns the running average score for a domain, 0 when unknown.
// Store failures are treated as unknown, never propagated.
func (s *Store) Score(ctx context.Context, domain string) float64 {
	domain = canonicalDomain(domain)
	if domain == "" {
		return 0
	}

	if v, found := s.cache.Get(domain); found {
		return v.(float64)
	}

	record, err := s.backend.Get(ctx, domain)
	if err != nil {
		s.logger.Warn("trust lookup failed", zap.String("domain", domain), zap.Error(err))
		return 0
	}

	score := 0.0
	if record != nil {
		score = record.AvgScore
	}
	s.cache.Set(domain, score, gocache.DefaultExpiration)
	return score
}

// ScoreForURL resolves the URL's domain and returns its trust score
func (s *Store) ScoreForURL(ctx context.Context, rawURL string) float64 {
	return s.Score(ctx, DomainOf(rawURL))
}

// CredibleDomains returns the set of domains with at least one vote,
// falling back to the seed list when the store is empty or unreachable.
// Cached alongside the per-domain scores.
func (s *Store) CredibleDomains(ctx context.Context) map[string]bool {
	if v, found := s.cache.Get(credibleSetKey); found {
		return v.(map[string]bool)
	}

	set := make(map[string]bool)
	records, err := s.backend.ListVoted(ctx, 1)
	if err != nil {
		s.logger.Warn("credible domain load failed", zap.Error(err))
	}
	for _, r := range records {
		set[r.Domain] = true
	}
	if len(set) == 0 {
		for _, d := range seedDomains {
			set[d] = true
		}
	}

	s.cache.Set(credibleSetKey, set, gocache.DefaultExpiration)
	return set
}

// ApplyVotes folds a batch of evidence scores into the store: existing
// domains get the online-average update, new domains start at the voted
// score with one vote. The read cache is invalidated afterwards.
func (s *Store) ApplyVotes(ctx context.Context, votes map[string]float64) error {
	if len(votes) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]model.DomainTrustRecord, 0, len(votes))

	for domain, score := range votes {
		domain = canonicalDomain(domain)
		if domain == "" {
			continue
		}

		record, err := s.backend.Get(ctx, domain)
		if err != nil {
			s.logger.Warn("trust read before vote failed", zap.String("domain", domain), zap.Error(err))
			continue
		}
		if record == nil {
			record = &model.DomainTrustRecord{Domain: domain}
		}
		record.Vote(score, now)
		records = append(records, *record)
	}

	if err := s.backend.BatchUpsert(ctx, records); err != nil {
		return err
	}

	s.cache.Flush()
	return nil
}

// DomainOf extracts the registrable host from a URL, without www.
func DomainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return canonicalDomain(parsed.Host)
}

func canonicalDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimSuffix(domain, "/")
	domain = strings.TrimPrefix(domain, "www.")
	if idx := strings.Index(domain, ":"); idx > 0 {
		domain = domain[:idx]
	}
	return domain
}
