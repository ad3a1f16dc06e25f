package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTempSource(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.pdf")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestExtractPool_SuccessWritesTextAndCompletes(t *testing.T) {
	facade := newTestFacade(t, &fakeExtractor{text: "hello world\n", pageCount: 1, pageBoundaries: []int{12}})
	ns, _, err := facade.CreateCollection("c1")
	require.NoError(t, err)

	docID, _, err := facade.StoreSource(ns, writeTempSource(t, []byte("%PDF-1.4 fake")))
	require.NoError(t, err)

	tracker := NewTracker()
	queue := newUnboundedQueue[ExtractJob]()
	pool := NewExtractPool(facade, tracker, queue, 2)

	tracker.Queued(ns.String(), StageExtract, 1)
	queue.Push(ExtractJob{Namespace: ns, DocID: docID})
	queue.Close()
	pool.Wait()

	meta, err := facade.GetDocument(ns, docID)
	require.NoError(t, err)
	require.Equal(t, 1, meta.PageCount)

	counts := tracker.Snapshot(ns.String()).Stages[StageExtract]
	require.Equal(t, 1, counts.Completed)
	require.Equal(t, 0, counts.Failed)
}

func TestExtractPool_FailureReportsAndIncrementsFailed(t *testing.T) {
	facade := newTestFacade(t, &fakeExtractor{err: require.AnError})
	ns, _, err := facade.CreateCollection("c1")
	require.NoError(t, err)

	docID, _, err := facade.StoreSource(ns, writeTempSource(t, []byte("%PDF-1.4 fake")))
	require.NoError(t, err)

	tracker := NewTracker()
	queue := newUnboundedQueue[ExtractJob]()
	pool := NewExtractPool(facade, tracker, queue, 1)

	tracker.Queued(ns.String(), StageExtract, 1)
	queue.Push(ExtractJob{Namespace: ns, DocID: docID})
	queue.Close()
	pool.Wait()

	select {
	case f := <-pool.Failed():
		require.Equal(t, docID, f.DocID)
		require.Equal(t, StageExtract, f.Stage)
	case <-time.After(time.Second):
		t.Fatal("expected a DocumentFailed notification")
	}

	counts := tracker.Snapshot(ns.String()).Stages[StageExtract]
	require.Equal(t, 1, counts.Failed)
	require.Equal(t, 0, counts.Completed)

	// No metadata is written for a failed extraction.
	_, err = facade.GetDocument(ns, docID)
	require.Error(t, err)
}
