package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seedQueryFixture(t *testing.T, idx *Index) {
	t.Helper()
	rows := []ChunkRow{
		{
			ID: RowID("doc1", 0), ParentID: "doc1", ParentName: "alpha.pdf",
			Content: "[alpha.pdf]\n\nthe quick brown fox jumps over the lazy dog",
			CollectionID: "col1", Vector: vec(1, 0, 0, 0),
		},
		{
			ID: RowID("doc2", 0), ParentID: "doc2", ParentName: "beta.pdf",
			Content: "[beta.pdf]\n\nan unrelated passage about municipal budgets",
			CollectionID: "col1", Vector: vec(0, 1, 0, 0),
		},
		{
			ID: RowID("doc3", 0), ParentID: "doc3", ParentName: "gamma.pdf",
			Content: "[gamma.pdf]\n\nthe quick brown fox also appears here",
			CollectionID: "col2", Vector: vec(0.9, 0.1, 0, 0),
		},
	}
	require.NoError(t, idx.Upsert(rows))
}

func TestQuery_PureBM25(t *testing.T) {
	idx := openTestIndex(t)
	seedQueryFixture(t, idx)

	res, err := idx.Query(QueryRequest{Query: "quick brown fox", Limit: 10, SemanticRatio: 0})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	ids := map[string]bool{}
	for _, h := range res.Hits {
		ids[h.ParentID] = true
	}
	require.True(t, ids["doc1"])
	require.True(t, ids["doc3"])
	require.False(t, ids["doc2"])
}

func TestQuery_PureVectorFindsClosestMatch(t *testing.T) {
	idx := openTestIndex(t)
	seedQueryFixture(t, idx)

	res, err := idx.Query(QueryRequest{
		Query:         "quick brown fox",
		Limit:         1,
		SemanticRatio: 1,
		QueryVector:   vec(1, 0, 0, 0),
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	require.Equal(t, "doc1", res.Hits[0].ParentID)
}

func TestQuery_CollectionFilter(t *testing.T) {
	idx := openTestIndex(t)
	seedQueryFixture(t, idx)

	res, err := idx.Query(QueryRequest{
		Query:         "quick brown fox",
		Limit:         10,
		SemanticRatio: 0,
		CollectionIDs: []string{"col2"},
	})
	require.NoError(t, err)
	for _, h := range res.Hits {
		require.Equal(t, "col2", h.CollectionID)
	}
}

func TestQuery_MinScoreFiltersLowConfidenceHits(t *testing.T) {
	idx := openTestIndex(t)
	seedQueryFixture(t, idx)

	loose, err := idx.Query(QueryRequest{Query: "quick brown fox", Limit: 10, SemanticRatio: 0, MinScore: 0})
	require.NoError(t, err)
	strict, err := idx.Query(QueryRequest{Query: "quick brown fox", Limit: 10, SemanticRatio: 0, MinScore: 0.99})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(loose.Hits), len(strict.Hits))
}

func TestQuery_EmptyIndexReturnsNoHits(t *testing.T) {
	idx := openTestIndex(t)
	res, err := idx.Query(QueryRequest{Query: "anything", Limit: 10, SemanticRatio: 0.5, QueryVector: vec(1, 0, 0, 0)})
	require.NoError(t, err)
	require.Empty(t, res.Hits)
	require.Equal(t, 0, res.TotalHits)
}
