package model

// OutlineStrategy identifies which stage of the fallback chain produced an
// outline.
type OutlineStrategy string

const (
	// StrategyDirectAI means the structured-extraction model found the
	// outline in one pass over the candidate list.
	StrategyDirectAI OutlineStrategy = "direct_ai"
	// StrategyScrapeCleaned means headings were scraped and then reduced to
	// a clean outline by the model.
	StrategyScrapeCleaned OutlineStrategy = "scrape_cleaned"
	// StrategyScrapeRawFormatted means headings were scraped but the cleanup
	// pass failed, so the raw headings were formatted locally.
	StrategyScrapeRawFormatted OutlineStrategy = "scrape_raw_formatted"
	// StrategyNotFound means no stage produced usable text.
	StrategyNotFound OutlineStrategy = "not_found"
)

// NotFoundMessage is the fixed outline text used when every stage misses.
// An OutlineResult never carries empty text.
const NotFoundMessage = "No clear Table of Contents found in any of the URLs."

// CandidateDocument is one source URL competing to supply an outline.
// Candidates are tried in ascending PriorityRank order; the first success
// wins.
type CandidateDocument struct {
	Reference    string `json:"reference"`
	PriorityRank int    `json:"priority_rank"`
}

// OutlineResult is the outcome of a resolve call.
type OutlineResult struct {
	Text           string          `json:"text"`
	Strategy       OutlineStrategy `json:"strategy"`
	SourceDocument string          `json:"source_document,omitempty"`
}

// Found reports whether any stage produced an outline.
func (r *OutlineResult) Found() bool {
	return r.Strategy != StrategyNotFound
}

// Heading is a structural marker extracted from a candidate document.
type Heading struct {
	Level int    `json:"level"` // 1..6
	Text  string `json:"text"`
}
