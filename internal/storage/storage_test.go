package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/insightd/internal/blobstore"
	"github.com/Aman-CERP/insightd/internal/keyspace"
	"github.com/Aman-CERP/insightd/internal/ticket"
)

type fakeExtractor struct {
	text           string
	pageCount      int
	pageBoundaries []int
	err            error
}

func (f *fakeExtractor) Extract(pdf []byte) (string, int, []int, error) {
	if f.err != nil {
		return "", 0, nil, f.err
	}
	return f.text, f.pageCount, f.pageBoundaries, nil
}

func newTestFacade(t *testing.T, extractor Extractor) *Facade {
	t.Helper()
	dir := t.TempDir()

	keyspaces, err := keyspace.NewManager(filepath.Join(dir, "docs"))
	require.NoError(t, err)
	t.Cleanup(keyspaces.CloseAll)

	blobs, err := blobstore.Open(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	facade, err := New(keyspaces, blobs, extractor, keyspace.NewAuthorID(), 64)
	require.NoError(t, err)
	return facade
}

func TestCreateCollection_ThenGetCollectionMeta(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{})

	ns, meta, err := f.CreateCollection("Tax 2024")
	require.NoError(t, err)
	assert.Equal(t, "Tax 2024", meta.Name)

	got, err := f.GetCollectionMeta(ns)
	require.NoError(t, err)
	assert.Equal(t, meta.Name, got.Name)
}

func TestGetCollectionMeta_MissingCollectionErrors(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{})
	ns, err := keyspace.NewNamespaceID()
	require.NoError(t, err)

	_, err = f.GetCollectionMeta(ns)

	assert.Error(t, err)
}

func TestStoreSource_DuplicateSourceIsRejected(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{text: "hello\n", pageCount: 1, pageBoundaries: []int{6}})
	ns, _, err := f.CreateCollection("c")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644))

	docID, _, err := f.StoreSource(ns, path)
	require.NoError(t, err)
	require.NotEmpty(t, docID)

	_, err = f.ExtractAndStoreText(ns, docID)
	require.NoError(t, err)

	_, _, err = f.StoreSource(ns, path)
	assert.Error(t, err)
}

func TestExtractAndStoreText_PopulatesMetaAndInvalidatesCache(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{text: "page one\npage two\n", pageCount: 2, pageBoundaries: []int{9, 18}})
	ns, _, err := f.CreateCollection("c")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644))
	docID, _, err := f.StoreSource(ns, path)
	require.NoError(t, err)

	meta, err := f.ExtractAndStoreText(ns, docID)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.PageCount)
	assert.Equal(t, []int{9, 18}, meta.PageBoundaries)

	got, err := f.GetDocument(ns, docID)
	require.NoError(t, err)
	assert.Equal(t, meta.PageCount, got.PageCount)
}

func TestExtractAndStoreText_MissingSourceErrors(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{})
	ns, _, err := f.CreateCollection("c")
	require.NoError(t, err)

	_, err = f.ExtractAndStoreText(ns, "nonexistent-doc")

	assert.Error(t, err)
}

func TestListDocuments_ReturnsAllExtractedDocuments(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{text: "hi\n", pageCount: 1, pageBoundaries: []int{3}})
	ns, _, err := f.CreateCollection("c")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		path := filepath.Join(t.TempDir(), "doc.pdf")
		require.NoError(t, os.WriteFile(path, []byte("content"+string(rune('a'+i))), 0644))
		docID, _, err := f.StoreSource(ns, path)
		require.NoError(t, err)
		_, err = f.ExtractAndStoreText(ns, docID)
		require.NoError(t, err)
	}

	docs, err := f.ListDocuments(ns)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestDeleteDocument_RemovesMetaAndHashIndexEntry(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{text: "hi\n", pageCount: 1, pageBoundaries: []int{3}})
	ns, _, err := f.CreateCollection("c")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644))
	docID, sourceHash, err := f.StoreSource(ns, path)
	require.NoError(t, err)
	_, err = f.ExtractAndStoreText(ns, docID)
	require.NoError(t, err)

	require.NoError(t, f.DeleteDocument(ns, docID))

	_, err = f.GetDocument(ns, docID)
	assert.Error(t, err)

	has, err := f.HasSourceHash(ns, sourceHash)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStoreAndGetEmbeddings_RoundTrips(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{})
	ns, _, err := f.CreateCollection("c")
	require.NoError(t, err)

	data := EmbeddingData{
		ModelID:    "bge-base-en-v1.5",
		Dimensions: 3,
		Chunks: []EmbeddingChunk{
			{Index: 0, Content: "chunk one", Vector: []float32{0.1, 0.2, 0.3}, StartPage: 1, EndPage: 1},
		},
	}
	require.NoError(t, f.StoreEmbeddings(ns, "doc-1", data))

	got, err := f.GetEmbeddings(ns, "doc-1", "bge-base-en-v1.5")
	require.NoError(t, err)
	assert.Equal(t, data.Dimensions, got.Dimensions)
	assert.Len(t, got.Chunks, 1)
}

func TestGetEmbeddings_UnknownModelErrors(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{})
	ns, _, err := f.CreateCollection("c")
	require.NoError(t, err)

	_, err = f.GetEmbeddings(ns, "doc-1", "unknown-model")

	assert.Error(t, err)
}

func TestShareAndImport_LocalCollectionReturnsImmediately(t *testing.T) {
	f := newTestFacade(t, &fakeExtractor{})
	ns, _, err := f.CreateCollection("c")
	require.NoError(t, err)

	tk, err := f.Share(ns, ticket.Read, []string{"127.0.0.1:4433"})
	require.NoError(t, err)

	gotNS, warning, err := f.Import(context.Background(), tk)
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.Equal(t, ns, gotNS)
}

