package model

import "time"

// Draft is a blog draft being enriched. Persisted by the store; the
// enrichment components never mutate it directly.
type Draft struct {
	ID            string              `json:"id"`
	AccountID     string              `json:"account_id"`
	TopicKeyword  string              `json:"topic_keyword"`
	Candidates    []CandidateDocument `json:"candidates,omitempty"`
	Outline       *OutlineResult      `json:"outline,omitempty"`
	Description   string              `json:"description,omitempty"`
	Keywords      []KeywordIdea       `json:"keywords,omitempty"`
	IncludeTerms  []KeywordTerm       `json:"include_terms,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ReconciliationEvent records a debit that failed after its product was
// already delivered. These are surfaced for manual replay, never retried
// or rolled back automatically.
type ReconciliationEvent struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"account_id"`
	Operation        Operation `json:"operation"`
	LinkedResourceID string    `json:"linked_resource_id,omitempty"`
	Amount           int64     `json:"amount"`
	Cause            string    `json:"cause"`
	CreatedAt        time.Time `json:"created_at"`
}
