package search

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "search"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	idx.RegisterEmbedder(DefaultEmbedderName, 4)
	return idx
}

func vec(values ...float32) []float32 { return values }

func TestIndex_UpsertAndGetChunk(t *testing.T) {
	idx := openTestIndex(t)

	row := ChunkRow{
		ID:           RowID("doc1", 0),
		ParentID:     "doc1",
		ParentName:   "report.pdf",
		ChunkIndex:   0,
		Content:      "[report.pdf]\n\nthe quick brown fox",
		CollectionID: "col1",
		PageCount:    3,
		StartPage:    1,
		EndPage:      1,
		Vector:       vec(1, 0, 0, 0),
	}
	require.NoError(t, idx.Upsert([]ChunkRow{row}))

	got, ok, err := idx.GetChunk("doc1", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, row.ParentName, got.ParentName)
	require.Equal(t, row.Content, got.Content)
	require.Equal(t, row.CollectionID, got.CollectionID)
	require.Equal(t, row.PageCount, got.PageCount)

	_, ok, err = idx.GetChunk("doc1", 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndex_UpsertRejectsWrongDimension(t *testing.T) {
	idx := openTestIndex(t)
	row := ChunkRow{ID: RowID("doc1", 0), ParentID: "doc1", Content: "x", Vector: vec(1, 2)}
	err := idx.Upsert([]ChunkRow{row})
	require.Error(t, err)
}

func TestIndex_DeleteByParentRemovesAllChunks(t *testing.T) {
	idx := openTestIndex(t)
	rows := []ChunkRow{
		{ID: RowID("doc1", 0), ParentID: "doc1", Content: "alpha beta", Vector: vec(1, 0, 0, 0)},
		{ID: RowID("doc1", 1), ParentID: "doc1", Content: "gamma delta", Vector: vec(0, 1, 0, 0)},
		{ID: RowID("doc2", 0), ParentID: "doc2", Content: "other doc", Vector: vec(0, 0, 1, 0)},
	}
	require.NoError(t, idx.Upsert(rows))

	require.NoError(t, idx.DeleteByParent("doc1"))

	_, ok, err := idx.GetChunk("doc1", 0)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = idx.GetChunk("doc1", 1)
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err := idx.GetChunk("doc2", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "other doc", got.Content)
}

func TestIndex_DeleteByCollectionRemovesOnlyThatCollectionsChunks(t *testing.T) {
	idx := openTestIndex(t)
	rows := []ChunkRow{
		{ID: RowID("doc1", 0), ParentID: "doc1", CollectionID: "col1", Content: "alpha beta", Vector: vec(1, 0, 0, 0)},
		{ID: RowID("doc2", 0), ParentID: "doc2", CollectionID: "col1", Content: "gamma delta", Vector: vec(0, 1, 0, 0)},
		{ID: RowID("doc3", 0), ParentID: "doc3", CollectionID: "col2", Content: "other collection", Vector: vec(0, 0, 1, 0)},
	}
	require.NoError(t, idx.Upsert(rows))

	require.NoError(t, idx.DeleteByCollection("col1"))

	_, ok, err := idx.GetChunk("doc1", 0)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = idx.GetChunk("doc2", 0)
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err := idx.GetChunk("doc3", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "other collection", got.Content)
}

func TestIndex_Reset(t *testing.T) {
	idx := openTestIndex(t)
	row := ChunkRow{ID: RowID("doc1", 0), ParentID: "doc1", Content: "alpha", Vector: vec(1, 0, 0, 0)}
	require.NoError(t, idx.Upsert([]ChunkRow{row}))

	require.NoError(t, idx.Reset())

	_, ok, err := idx.GetChunk("doc1", 0)
	require.NoError(t, err)
	require.False(t, ok)

	idx.RegisterEmbedder(DefaultEmbedderName, 4)
	require.NoError(t, idx.Upsert([]ChunkRow{row}))
	_, ok, err = idx.GetChunk("doc1", 0)
	require.NoError(t, err)
	require.True(t, ok)
}
