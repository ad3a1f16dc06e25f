package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/storage"
)

// embedCallTimeout bounds one Embedder.EmbedBatch call; it is not a
// configurable pipeline tunable since it protects against a hung HTTP
// call rather than shaping throughput.
const embedCallTimeout = 60 * time.Second

// EmbedPool runs a fixed number of workers sharing one job queue, each
// with its own internal batcher that coalesces documents within
// batchWindow or until batchDocs accumulate, so a
// GPU-backed embedder sees fewer, larger calls instead of one request
// per document.
type EmbedPool struct {
	facade      *storage.Facade
	embedder    *EmbedderCell
	tracker     *Tracker
	chunker     *Chunker
	queue       *unboundedQueue[EmbedJob]
	failed      chan DocumentFailed
	batchDocs   int
	batchWindow time.Duration
	gpuBatch    int

	wg sync.WaitGroup
}

// NewEmbedPool starts workers goroutines, each batching its own slice of
// queue into groups of at most batchDocs documents within batchWindow,
// embedding in GPU calls of at most gpuBatch chunks.
func NewEmbedPool(facade *storage.Facade, embedder *EmbedderCell, tracker *Tracker, chunker *Chunker, queue *unboundedQueue[EmbedJob], workers, batchDocs, gpuBatch int, batchWindow time.Duration) *EmbedPool {
	p := &EmbedPool{
		facade:      facade,
		embedder:    embedder,
		tracker:     tracker,
		chunker:     chunker,
		queue:       queue,
		failed:      make(chan DocumentFailed, 64),
		batchDocs:   batchDocs,
		batchWindow: batchWindow,
		gpuBatch:    gpuBatch,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
	return p
}

// Failed returns the channel of per-document embedding failures.
func (p *EmbedPool) Failed() <-chan DocumentFailed {
	return p.failed
}

// Wait blocks until every worker has exited, which happens once the job
// queue is closed, drained, and every worker's batcher has flushed.
func (p *EmbedPool) Wait() {
	p.wg.Wait()
}

func (p *EmbedPool) runWorker() {
	defer p.wg.Done()

	batcher := NewBatcher[EmbedJob](p.batchDocs, p.batchWindow)
	var batchWG sync.WaitGroup
	batchWG.Add(1)
	go func() {
		defer batchWG.Done()
		for batch := range batcher.Output() {
			p.processBatch(batch)
		}
	}()

	for job := range p.queue.Out() {
		batcher.Add(job)
	}
	batcher.Stop()
	batchWG.Wait()
}

type embedDocWork struct {
	job    EmbedJob
	text   string
	meta   storage.DocumentMetadata
	chunks []Chunk
}

// processBatch implements steps 1-5 for one flushed batch.
func (p *EmbedPool) processBatch(batch []EmbedJob) {
	embedder := p.embedder.Get()
	if embedder == nil {
		slog.Debug("embed batch dropped: no embedder configured", slog.Int("batch_size", len(batch)))
		return
	}

	for _, job := range batch {
		p.tracker.Started(job.Namespace.String(), StageEmbed)
	}

	works := make([]embedDocWork, 0, len(batch))
	for _, job := range batch {
		text, err := p.facade.GetText(job.Namespace, job.DocID)
		if err != nil {
			p.fail(job, err)
			continue
		}
		meta, err := p.facade.GetDocument(job.Namespace, job.DocID)
		if err != nil {
			p.fail(job, err)
			continue
		}
		chunks := p.chunker.Chunk(text)
		works = append(works, embedDocWork{job: job, text: text, meta: meta, chunks: chunks})
	}

	allChunks := make([]string, 0)
	owners := make([]int, 0) // owners[i] = index into works that allChunks[i] belongs to
	for wi, w := range works {
		for _, c := range w.chunks {
			allChunks = append(allChunks, c.Content)
			owners = append(owners, wi)
		}
	}
	if len(allChunks) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), embedCallTimeout)
	defer cancel()

	vectors := make([][]float32, 0, len(allChunks))
	for start := 0; start < len(allChunks); start += p.gpuBatch {
		end := start + p.gpuBatch
		if end > len(allChunks) {
			end = len(allChunks)
		}
		vecs, err := embedder.EmbedBatch(ctx, allChunks[start:end])
		if err != nil {
			p.failAll(works, apperrors.New(apperrors.ErrCodeEmbedFailed, "embed batch", err))
			return
		}
		vectors = append(vectors, vecs...)
	}

	perDoc := make([][][]float32, len(works))
	for i, owner := range owners {
		perDoc[owner] = append(perDoc[owner], vectors[i])
	}

	for wi, w := range works {
		data := storage.EmbeddingData{
			ModelID:    embedder.ModelID(),
			Dimensions: embedder.Dimensions(),
			CreatedAt:  time.Now(),
			Chunks:     make([]storage.EmbeddingChunk, 0, len(w.chunks)),
		}
		vecs := perDoc[wi]
		for ci, c := range w.chunks {
			startPage := PageOf(w.meta.PageBoundaries, c.StartOffset)
			endPage := PageOf(w.meta.PageBoundaries, c.StartOffset+len(c.Content))
			var vec []float32
			if ci < len(vecs) {
				vec = vecs[ci]
			}
			data.Chunks = append(data.Chunks, storage.EmbeddingChunk{
				Index:     c.Index,
				Content:   c.Content,
				Vector:    vec,
				StartPage: startPage,
				EndPage:   endPage,
			})
		}
		if err := p.facade.StoreEmbeddings(w.job.Namespace, w.job.DocID, data); err != nil {
			p.fail(w.job, err)
			continue
		}
		p.tracker.Completed(w.job.Namespace.String(), StageEmbed)
	}
}

func (p *EmbedPool) failAll(works []embedDocWork, err error) {
	for _, w := range works {
		p.fail(w.job, err)
	}
}

func (p *EmbedPool) fail(job EmbedJob, err error) {
	p.tracker.Failed(job.Namespace.String(), StageEmbed)
	f := DocumentFailed{Namespace: job.Namespace, DocID: job.DocID, Stage: StageEmbed, Err: err}
	select {
	case p.failed <- f:
	default:
		slog.Warn("embed failure channel full, dropping notification",
			slog.String("collection", f.Namespace.String()),
			slog.String("doc_id", f.DocID))
	}
}
