package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/insightd/internal/config"
	"github.com/Aman-CERP/insightd/internal/embedclient"
	"github.com/Aman-CERP/insightd/internal/search"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *search.Index) {
	t.Helper()
	facade := newTestFacade(t, &fakeExtractor{text: "hello world\n", pageCount: 1})

	idx, err := search.Open(filepath.Join(t.TempDir(), "search"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	cfg := config.NewPipelineConfig()
	c := New(facade, idx, cfg, embedclient.NewStaticEmbedder())
	t.Cleanup(c.Shutdown)
	return c, idx
}

func TestCoordinator_DeleteDocumentRemovesChunksAndStorage(t *testing.T) {
	c, idx := newTestCoordinator(t)
	facade := c.facade

	ns, _, err := facade.CreateCollection("c1")
	require.NoError(t, err)

	docID, hash, err := facade.StoreSource(ns, writeTempSource(t, []byte("%PDF-1.4 fake")))
	require.NoError(t, err)
	_, err = facade.ExtractAndStoreText(ns, docID)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert([]search.ChunkRow{
		{ID: search.RowID(docID, 0), ParentID: docID, CollectionID: ns.String(), Content: "alpha", Vector: make([]float32, embedclient.StaticDimensions)},
		{ID: search.RowID(docID, 1), ParentID: docID, CollectionID: ns.String(), Content: "beta", Vector: make([]float32, embedclient.StaticDimensions)},
	}))

	require.NoError(t, c.DeleteDocument(ns, docID))

	_, ok, err := idx.GetChunk(docID, 0)
	require.NoError(t, err)
	require.False(t, ok, "chunk 0 must be gone from the search index")
	_, ok, err = idx.GetChunk(docID, 1)
	require.NoError(t, err)
	require.False(t, ok, "chunk 1 must be gone from the search index")

	_, err = facade.GetDocument(ns, docID)
	require.Error(t, err, "document metadata must be gone from storage")

	found, err := facade.HasSourceHash(ns, hash)
	require.NoError(t, err)
	require.False(t, found, "the hash index must no longer report this document as imported")
}

func TestCoordinator_DeleteCollectionRemovesChunksAcrossDocuments(t *testing.T) {
	c, idx := newTestCoordinator(t)
	facade := c.facade

	nsKeep, _, err := facade.CreateCollection("keep")
	require.NoError(t, err)
	nsGone, _, err := facade.CreateCollection("gone")
	require.NoError(t, err)

	docKeep, _, err := facade.StoreSource(nsKeep, writeTempSource(t, []byte("%PDF-1.4 keep")))
	require.NoError(t, err)
	_, err = facade.ExtractAndStoreText(nsKeep, docKeep)
	require.NoError(t, err)

	docGone, _, err := facade.StoreSource(nsGone, writeTempSource(t, []byte("%PDF-1.4 gone")))
	require.NoError(t, err)
	_, err = facade.ExtractAndStoreText(nsGone, docGone)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert([]search.ChunkRow{
		{ID: search.RowID(docKeep, 0), ParentID: docKeep, CollectionID: nsKeep.String(), Content: "keep", Vector: make([]float32, embedclient.StaticDimensions)},
		{ID: search.RowID(docGone, 0), ParentID: docGone, CollectionID: nsGone.String(), Content: "gone", Vector: make([]float32, embedclient.StaticDimensions)},
	}))

	require.NoError(t, c.Watch(nsGone))
	require.NoError(t, c.DeleteCollection(nsGone))

	_, ok, err := idx.GetChunk(docGone, 0)
	require.NoError(t, err)
	require.False(t, ok, "the deleted collection's chunk must be gone from the search index")

	got, ok, err := idx.GetChunk(docKeep, 0)
	require.NoError(t, err)
	require.True(t, ok, "a surviving collection's chunk must be untouched")
	require.Equal(t, "keep", got.Content)

	_, err = facade.GetCollectionMeta(nsGone)
	require.Error(t, err, "the deleted collection's own keyspace must be dropped")
}
