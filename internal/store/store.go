// Package store persists drafts and their enrichment products. Two
// backends implement the same interface: Postgres for deployments and
// SQLite for local use.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/draftzen/internal/model"
)

// ErrDraftNotFound is returned when a draft id does not exist or belongs
// to a different account.
var ErrDraftNotFound = errors.New("store: draft not found")

// DraftFilter specifies criteria for listing drafts.
type DraftFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store defines the persistence interface for drafts. All reads and
// writes are scoped to the owning account.
type Store interface {
	CreateDraft(ctx context.Context, draft *model.Draft) (*model.Draft, error)
	GetDraft(ctx context.Context, accountID, draftID string) (*model.Draft, error)
	ListDrafts(ctx context.Context, accountID string, filter DraftFilter) ([]model.Draft, error)
	DeleteDraft(ctx context.Context, accountID, draftID string) error

	// Enrichment products; each touches one column and bumps updated_at.
	SetOutline(ctx context.Context, accountID, draftID string, outline *model.OutlineResult) error
	SetDescription(ctx context.Context, accountID, draftID string, description string) error
	SetKeywords(ctx context.Context, accountID, draftID string, keywords []model.KeywordIdea) error
	SetIncludeTerms(ctx context.Context, accountID, draftID string, terms []model.KeywordTerm) error

	Migrate(ctx context.Context) error
	Close() error
}
