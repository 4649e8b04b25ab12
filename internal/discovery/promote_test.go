package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/draftzen/internal/model"
)

func sampleResults() []model.SearchResult {
	return []model.SearchResult{
		{Title: "First generic", URL: "https://blog.example.com/one"},
		{Title: "Competitor A", URL: "https://www.rivalco.com/guide"},
		{Title: "Second generic", URL: "https://another.example.org/two"},
		{Title: "Competitor B", URL: "https://content.rivalco.com/deep"},
		{Title: "Other competitor", URL: "https://bigbrand.io/post"},
	}
}

func TestPromote_CompetitorsFirstStableWithinGroups(t *testing.T) {
	p := NewPromoter([]string{"rivalco.com", "bigbrand.io"})
	got := p.Promote(sampleResults())

	require.Len(t, got, 5)
	assert.Equal(t, "Competitor A", got[0].Title)
	assert.Equal(t, "Competitor B", got[1].Title)
	assert.Equal(t, "Other competitor", got[2].Title)
	assert.Equal(t, "First generic", got[3].Title)
	assert.Equal(t, "Second generic", got[4].Title)

	assert.Equal(t, "RIVALCO.COM", got[0].Source)
	assert.Equal(t, "BIGBRAND.IO", got[2].Source)
	assert.Equal(t, GeneralSource, got[3].Source)
}

func TestPromote_NoCompetitorsKeepsOrder(t *testing.T) {
	p := NewPromoter(nil)
	got := p.Promote(sampleResults())

	require.Len(t, got, 5)
	for i, r := range got {
		assert.Equal(t, sampleResults()[i].Title, r.Title)
		assert.Equal(t, GeneralSource, r.Source)
	}
}

func TestPromote_HostNormalization(t *testing.T) {
	p := NewPromoter([]string{"rivalco.com"})
	got := p.Promote([]model.SearchResult{
		{Title: "WWW prefix", URL: "https://WWW.RivalCo.com/x"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "rivalco.com", got[0].OriginSite)
	assert.Equal(t, "RIVALCO.COM", got[0].Source)
}

func TestCandidates_RanksPromotedOrder(t *testing.T) {
	p := NewPromoter([]string{"rivalco.com"})
	cands := p.Candidates(sampleResults(), 3)

	require.Len(t, cands, 3)
	assert.Equal(t, "https://www.rivalco.com/guide", cands[0].Reference)
	assert.Equal(t, 1, cands[0].PriorityRank)
	assert.Equal(t, "https://content.rivalco.com/deep", cands[1].Reference)
	assert.Equal(t, 2, cands[1].PriorityRank)
	assert.Equal(t, 3, cands[2].PriorityRank)
}

func TestPromote_DoesNotMutateInput(t *testing.T) {
	p := NewPromoter([]string{"rivalco.com"})
	in := sampleResults()
	_ = p.Promote(in)
	assert.Empty(t, in[1].Source, "input slice must stay untouched")
}
