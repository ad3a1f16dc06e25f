package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/insightd/internal/blobstore"
	"github.com/Aman-CERP/insightd/internal/keyspace"
	"github.com/Aman-CERP/insightd/internal/storage"
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

func newTestFacade(t *testing.T, extractor storage.Extractor) *storage.Facade {
	t.Helper()
	dir := t.TempDir()

	keyspaces, err := keyspace.NewManager(filepath.Join(dir, "docs"))
	require.NoError(t, err)
	t.Cleanup(keyspaces.CloseAll)

	blobs, err := blobstore.Open(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	facade, err := storage.New(keyspaces, blobs, extractor, keyspace.NewAuthorID(), 64)
	require.NoError(t, err)
	return facade
}
