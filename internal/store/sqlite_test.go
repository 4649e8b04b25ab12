package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/draftzen/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedDraft(t *testing.T, s *SQLiteStore, accountID string) *model.Draft {
	t.Helper()
	draft, err := s.CreateDraft(context.Background(), &model.Draft{
		AccountID:    accountID,
		TopicKeyword: "cold email",
		Candidates: []model.CandidateDocument{
			{Reference: "https://a.example.com/post", PriorityRank: 1},
			{Reference: "https://b.example.com/post", PriorityRank: 2},
		},
	})
	require.NoError(t, err)
	return draft
}

func TestCreateAndGetDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := seedDraft(t, s, "acct-1")
	require.NotEmpty(t, created.ID)

	got, err := s.GetDraft(ctx, "acct-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "cold email", got.TopicKeyword)
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "https://a.example.com/post", got.Candidates[0].Reference)
	assert.Nil(t, got.Outline)
}

func TestGetDraft_ScopedToAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := seedDraft(t, s, "acct-1")

	_, err := s.GetDraft(ctx, "acct-2", created.ID)
	assert.True(t, errors.Is(err, ErrDraftNotFound))
}

func TestSetOutline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seedDraft(t, s, "acct-1")

	outline := &model.OutlineResult{
		Text:           "1. Intro\n2. Body",
		Strategy:       model.StrategyScrapeCleaned,
		SourceDocument: "https://b.example.com/post",
	}
	require.NoError(t, s.SetOutline(ctx, "acct-1", created.ID, outline))

	got, err := s.GetDraft(ctx, "acct-1", created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Outline)
	assert.Equal(t, model.StrategyScrapeCleaned, got.Outline.Strategy)
	assert.Equal(t, "1. Intro\n2. Body", got.Outline.Text)
}

func TestSetEnrichmentProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seedDraft(t, s, "acct-1")

	require.NoError(t, s.SetDescription(ctx, "acct-1", created.ID, "A short teaser."))
	require.NoError(t, s.SetKeywords(ctx, "acct-1", created.ID, []model.KeywordIdea{
		{ID: 1, Keyword: "cold email tips", SearchVolume: 4400, Competition: 0.31},
	}))
	require.NoError(t, s.SetIncludeTerms(ctx, "acct-1", created.ID, []model.KeywordTerm{
		{Text: "outreach", SearchVolume: 3600, Repeat: 2},
	}))

	got, err := s.GetDraft(ctx, "acct-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "A short teaser.", got.Description)
	require.Len(t, got.Keywords, 1)
	assert.Equal(t, "cold email tips", got.Keywords[0].Keyword)
	require.Len(t, got.IncludeTerms, 1)
	assert.Equal(t, "outreach", got.IncludeTerms[0].Text)
}

func TestSetOutline_UnknownDraft(t *testing.T) {
	s := newTestStore(t)
	err := s.SetOutline(context.Background(), "acct-1", "missing", &model.OutlineResult{
		Text:     model.NotFoundMessage,
		Strategy: model.StrategyNotFound,
	})
	assert.True(t, errors.Is(err, ErrDraftNotFound))
}

func TestListDrafts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDraft(t, s, "acct-1")
	seedDraft(t, s, "acct-1")
	seedDraft(t, s, "acct-2")

	drafts, err := s.ListDrafts(ctx, "acct-1", DraftFilter{})
	require.NoError(t, err)
	assert.Len(t, drafts, 2)

	drafts, err = s.ListDrafts(ctx, "acct-1", DraftFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestDeleteDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seedDraft(t, s, "acct-1")

	require.NoError(t, s.DeleteDraft(ctx, "acct-1", created.ID))

	_, err := s.GetDraft(ctx, "acct-1", created.ID)
	assert.True(t, errors.Is(err, ErrDraftNotFound))

	err = s.DeleteDraft(ctx, "acct-1", created.ID)
	assert.True(t, errors.Is(err, ErrDraftNotFound))
}
