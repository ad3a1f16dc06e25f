package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/insightd/internal/search"
	"github.com/Aman-CERP/insightd/internal/storage"
)

// IndexWorker is the search index's single writer: one goroutine
// pulling batched Index jobs off the queue and committing them to the
// search index, which is itself safe for concurrent reads but assumes a
// single concurrent writer.
type IndexWorker struct {
	facade  *storage.Facade
	index   *search.Index
	tracker *Tracker
	queue   *unboundedQueue[IndexJob]

	batchItems  int
	batchWindow time.Duration

	failed    chan DocumentFailed
	completed chan DocumentCompleted

	wg sync.WaitGroup
}

// NewIndexWorker starts the single writer goroutine, batching by
// batchItems or batchWindow, whichever first.
func NewIndexWorker(facade *storage.Facade, index *search.Index, tracker *Tracker, queue *unboundedQueue[IndexJob], batchItems int, batchWindow time.Duration) *IndexWorker {
	w := &IndexWorker{
		facade:      facade,
		index:       index,
		tracker:     tracker,
		queue:       queue,
		batchItems:  batchItems,
		batchWindow: batchWindow,
		failed:      make(chan DocumentFailed, 64),
		completed:   make(chan DocumentCompleted, 64),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Failed returns the channel of per-document indexing failures.
func (w *IndexWorker) Failed() <-chan DocumentFailed {
	return w.failed
}

// Completed returns the channel of documents that reached the searchable
// state.
func (w *IndexWorker) Completed() <-chan DocumentCompleted {
	return w.completed
}

// Wait blocks until the writer goroutine has exited.
func (w *IndexWorker) Wait() {
	w.wg.Wait()
}

func (w *IndexWorker) run() {
	defer w.wg.Done()

	batcher := NewBatcher[IndexJob](w.batchItems, w.batchWindow)
	var batchWG sync.WaitGroup
	batchWG.Add(1)
	go func() {
		defer batchWG.Done()
		for batch := range batcher.Output() {
			w.processBatch(batch)
		}
	}()

	for job := range w.queue.Out() {
		batcher.Add(job)
	}
	batcher.Stop()
	batchWG.Wait()
}

// processBatch implements steps 1-5. A transaction error
// (the commit step) fails the whole batch rather than partially
// advancing state; a per-document load miss (step 2) only skips that
// document.
func (w *IndexWorker) processBatch(batch []IndexJob) {
	for _, job := range batch {
		w.tracker.Started(job.Namespace.String(), StageIndex)
	}

	failedDelete := make(map[string]bool, len(batch))
	for _, job := range batch {
		if err := w.index.DeleteByParent(job.DocID); err != nil {
			failedDelete[job.DocID] = true
			w.fail(job, err)
		}
	}

	type docRows struct {
		job  IndexJob
		rows []search.ChunkRow
	}
	var toCommit []docRows

	for _, job := range batch {
		if failedDelete[job.DocID] {
			continue
		}
		embeddings, err := w.facade.GetEmbeddings(job.Namespace, job.DocID, job.ModelID)
		if err != nil {
			slog.Debug("index job skipped: no embeddings",
				slog.String("collection", job.Namespace.String()),
				slog.String("doc_id", job.DocID))
			continue
		}
		meta, err := w.facade.GetDocument(job.Namespace, job.DocID)
		if err != nil {
			slog.Debug("index job skipped: no document metadata",
				slog.String("collection", job.Namespace.String()),
				slog.String("doc_id", job.DocID))
			continue
		}

		rows := make([]search.ChunkRow, 0, len(embeddings.Chunks))
		for _, chunk := range embeddings.Chunks {
			rows = append(rows, search.ChunkRow{
				ID:           search.RowID(job.DocID, chunk.Index),
				ParentID:     job.DocID,
				ParentName:   meta.Name,
				ChunkIndex:   chunk.Index,
				Content:      fmt.Sprintf("[%s]\n\n%s", meta.Name, chunk.Content),
				CollectionID: job.Namespace.String(),
				PageCount:    meta.PageCount,
				StartPage:    chunk.StartPage,
				EndPage:      chunk.EndPage,
				Vector:       chunk.Vector,
			})
		}
		toCommit = append(toCommit, docRows{job: job, rows: rows})
	}

	if len(toCommit) == 0 {
		return
	}

	var allRows []search.ChunkRow
	for _, d := range toCommit {
		allRows = append(allRows, d.rows...)
	}

	if err := w.index.Upsert(allRows); err != nil {
		for _, d := range toCommit {
			w.fail(d.job, err)
		}
		return
	}

	for _, d := range toCommit {
		w.tracker.Completed(d.job.Namespace.String(), StageIndex)
		w.reportCompleted(DocumentCompleted{Namespace: d.job.Namespace, DocID: d.job.DocID})
	}
}

func (w *IndexWorker) fail(job IndexJob, err error) {
	w.tracker.Failed(job.Namespace.String(), StageIndex)
	f := DocumentFailed{Namespace: job.Namespace, DocID: job.DocID, Stage: StageIndex, Err: err}
	select {
	case w.failed <- f:
	default:
		slog.Warn("index failure channel full, dropping notification",
			slog.String("collection", f.Namespace.String()),
			slog.String("doc_id", f.DocID))
	}
}

func (w *IndexWorker) reportCompleted(c DocumentCompleted) {
	select {
	case w.completed <- c:
	default:
		slog.Warn("index completion channel full, dropping notification",
			slog.String("collection", c.Namespace.String()),
			slog.String("doc_id", c.DocID))
	}
}
