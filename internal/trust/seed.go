package trust

import "strings"

// seedDomains is the fallback credible-domain list used when no votes
// have accumulated yet
var seedDomains = []string{
	"reuters.com",
	"bbc.com",
	"apnews.com",
	"cnn.com",
	"nytimes.com",
	"theguardian.com",
	"npr.org",
	"aljazeera.com",
	"bloomberg.com",
}

// wire-service and broadsheet domains that start above the seed baseline
var primaryDomains = map[string]bool{
	"reuters.com":     true,
	"apnews.com":      true,
	"bbc.com":         true,
	"npr.org":         true,
	"nytimes.com":     true,
	"theguardian.com": true,
	"bloomberg.com":   true,
}

// DefaultScore estimates a prior trust score for a domain that has no
// voting history. Government and academic hosts score highest, known
// wire services next, everything else starts neutral-low.
func DefaultScore(domain string) float64 {
	domain = canonicalDomain(domain)
	if domain == "" {
		return 0
	}

	if strings.HasSuffix(domain, ".gov") || strings.HasSuffix(domain, ".edu") || strings.HasSuffix(domain, ".ac.uk") {
		return 0.9
	}

	if primaryDomains[domain] {
		return 0.8
	}
	for primary := range primaryDomains {
		if strings.HasSuffix(domain, "."+primary) {
			return 0.8
		}
	}

	for _, seed := range seedDomains {
		if domain == seed || strings.HasSuffix(domain, "."+seed) {
			return 0.7
		}
	}

	return 0.3
}
