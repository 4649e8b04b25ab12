// Package discovery turns organic search results into the ranked
// candidate list the outline resolver consumes. Results from known
// competitor domains are promoted ahead of the rest; order is stable
// within each group.
package discovery

import (
	"net/url"
	"strings"

	"github.com/sells-group/draftzen/internal/model"
)

// GeneralSource tags results that matched no competitor.
const GeneralSource = "GENERAL"

// Promoter classifies and reorders search results against a configured
// competitor list.
type Promoter struct {
	competitors []string
}

// NewPromoter builds a Promoter. Competitor entries are bare domains or
// name fragments, matched case-insensitively against the result host.
func NewPromoter(competitors []string) *Promoter {
	normalized := make([]string, 0, len(competitors))
	for _, c := range competitors {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			normalized = append(normalized, c)
		}
	}
	return &Promoter{competitors: normalized}
}

// Promote tags each result with its source and moves competitor results
// to the front. The input slice is not modified.
func (p *Promoter) Promote(results []model.SearchResult) []model.SearchResult {
	var promoted, rest []model.SearchResult
	for _, r := range results {
		r.OriginSite = hostOf(r.URL)
		if name, ok := p.match(r.OriginSite); ok {
			r.Source = strings.ToUpper(name)
			promoted = append(promoted, r)
		} else {
			r.Source = GeneralSource
			rest = append(rest, r)
		}
	}
	return append(promoted, rest...)
}

// Candidates converts ranked results into the candidate list, keeping
// the promoted order as priority.
func (p *Promoter) Candidates(results []model.SearchResult, max int) []model.CandidateDocument {
	ranked := p.Promote(results)
	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	out := make([]model.CandidateDocument, 0, len(ranked))
	for i, r := range ranked {
		out = append(out, model.CandidateDocument{
			Reference:    r.URL,
			PriorityRank: i + 1,
		})
	}
	return out
}

func (p *Promoter) match(host string) (string, bool) {
	if host == "" {
		return "", false
	}
	for _, c := range p.competitors {
		if strings.Contains(host, c) {
			return c, true
		}
	}
	return "", false
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Host, "www."))
}
