package pipeline

import (
	"log/slog"
	"sync"

	"github.com/Aman-CERP/insightd/internal/storage"
)

// ExtractPool runs a fixed number of workers sharing one job queue,
// extracting text and page boundaries from each document's source bytes.
// Extraction is unbatched: PDF extraction is CPU-bound and already
// parallel across workers.
type ExtractPool struct {
	facade  *storage.Facade
	tracker *Tracker
	queue   *unboundedQueue[ExtractJob]
	failed  chan DocumentFailed

	wg sync.WaitGroup
}

// NewExtractPool starts workers goroutines pulling from queue. A
// successful extraction only writes storage; it does not enqueue the
// following Embed job itself. That job comes from the collection
// watcher's own dispatch of the resulting `files/{d}/text` InsertLocal
// event, keeping ExtractPool ignorant of what stage follows it.
func NewExtractPool(facade *storage.Facade, tracker *Tracker, queue *unboundedQueue[ExtractJob], workers int) *ExtractPool {
	p := &ExtractPool{
		facade:  facade,
		tracker: tracker,
		queue:   queue,
		failed:  make(chan DocumentFailed, 64),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Failed returns the channel of per-document extraction failures.
func (p *ExtractPool) Failed() <-chan DocumentFailed {
	return p.failed
}

// Wait blocks until every worker goroutine has exited, which happens once
// the job queue is closed and drained.
func (p *ExtractPool) Wait() {
	p.wg.Wait()
}

func (p *ExtractPool) run() {
	defer p.wg.Done()
	for job := range p.queue.Out() {
		p.tracker.Started(job.Namespace.String(), StageExtract)
		if _, err := p.facade.ExtractAndStoreText(job.Namespace, job.DocID); err != nil {
			p.tracker.Failed(job.Namespace.String(), StageExtract)
			p.reportFailure(DocumentFailed{Namespace: job.Namespace, DocID: job.DocID, Stage: StageExtract, Err: err})
			continue
		}
		p.tracker.Completed(job.Namespace.String(), StageExtract)
	}
}

func (p *ExtractPool) reportFailure(f DocumentFailed) {
	select {
	case p.failed <- f:
	default:
		slog.Warn("extract failure channel full, dropping notification",
			slog.String("collection", f.Namespace.String()),
			slog.String("doc_id", f.DocID))
	}
}
