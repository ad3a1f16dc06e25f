// Package pipeline implements the event-driven document processing
// pipeline: the collection watcher, the extract/embed/index
// worker pools, the progress tracker, and the Coordinator that wires
// them together per collection.
package pipeline

import (
	"log/slog"
	"sync"

	"github.com/Aman-CERP/insightd/internal/config"
	"github.com/Aman-CERP/insightd/internal/embedclient"
	"github.com/Aman-CERP/insightd/internal/keyspace"
	"github.com/Aman-CERP/insightd/internal/search"
	"github.com/Aman-CERP/insightd/internal/storage"
)

// Coordinator owns the pipeline's long-lived worker pools and spawns one
// CollectionWatcher per namespace it is asked to watch: a single
// coordinator struct fanning out to the extract/embed/index pools plus a
// watcher per collection.
type Coordinator struct {
	facade  *storage.Facade
	index   *search.Index
	tracker *Tracker
	cfg     *config.PipelineConfig

	activeModel *ActiveModelCell
	embedder    *EmbedderCell

	extractQ *unboundedQueue[ExtractJob]
	embedQ   *unboundedQueue[EmbedJob]
	indexQ   *unboundedQueue[IndexJob]

	extractPool *ExtractPool
	embedPool   *EmbedPool
	indexWorker *IndexWorker

	mu       sync.Mutex
	watchers map[string]*CollectionWatcher
}

// New builds a Coordinator and starts its worker pools. embedder may be
// nil if no model is configured yet; call
// SwitchActiveModel once one becomes available.
func New(facade *storage.Facade, index *search.Index, cfg *config.PipelineConfig, embedder embedclient.Embedder) *Coordinator {
	tracker := NewTracker()
	chunker, err := NewChunker(cfg.Chunk.MaxTokens, cfg.Chunk.OverlapTokens)
	if err != nil {
		// cl100k_base is a fixed, bundled encoding; failure here means a
		// packaging defect, not a runtime condition callers can recover
		// from.
		panic("insightd: load tokenizer encoding: " + err.Error())
	}

	modelID := ""
	if embedder != nil {
		modelID = embedder.ModelID()
		index.RegisterEmbedder(search.DefaultEmbedderName, embedder.Dimensions())
	}

	c := &Coordinator{
		facade:      facade,
		index:       index,
		tracker:     tracker,
		cfg:         cfg,
		activeModel: NewActiveModelCell(modelID),
		embedder:    NewEmbedderCell(embedder),
		extractQ:    newUnboundedQueue[ExtractJob](),
		embedQ:      newUnboundedQueue[EmbedJob](),
		indexQ:      newUnboundedQueue[IndexJob](),
		watchers:    make(map[string]*CollectionWatcher),
	}

	c.extractPool = NewExtractPool(facade, tracker, c.extractQ, cfg.Extract.Workers)
	c.embedPool = NewEmbedPool(facade, c.embedder, tracker, chunker, c.embedQ, cfg.Embed.Workers, cfg.Embed.BatchDocs, cfg.Embed.GPUBatchChunks, cfg.Embed.BatchWindow)
	c.indexWorker = NewIndexWorker(facade, index, tracker, c.indexQ, cfg.Index.BatchItems, cfg.Index.BatchWindow)

	return c
}

// Tracker returns the shared progress tracker, consulted by a UI or CLI
// status command.
func (c *Coordinator) Tracker() *Tracker { return c.tracker }

// Embedder returns the shared embedder cell, consulted by the agent tool
// dispatch's search tool to embed a query string with whatever model is
// currently active.
func (c *Coordinator) Embedder() *EmbedderCell { return c.embedder }

// ExtractFailed, EmbedFailed, and IndexFailed expose each pool's
// per-document failure channel.
func (c *Coordinator) ExtractFailed() <-chan DocumentFailed { return c.extractPool.Failed() }
func (c *Coordinator) EmbedFailed() <-chan DocumentFailed   { return c.embedPool.Failed() }
func (c *Coordinator) IndexFailed() <-chan DocumentFailed   { return c.indexWorker.Failed() }

// Completed exposes the index worker's completion channel, signaled once
// a document's chunks are all durably indexed.
func (c *Coordinator) Completed() <-chan DocumentCompleted { return c.indexWorker.Completed() }

// Watch subscribes to ns and starts dispatching its change events to the
// pipeline's job queues. Calling Watch twice for the same namespace is a
// no-op.
func (c *Coordinator) Watch(ns keyspace.NamespaceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := ns.String()
	if _, ok := c.watchers[key]; ok {
		return nil
	}

	events, unsubscribe, err := c.facade.Subscribe(ns)
	if err != nil {
		return err
	}
	c.watchers[key] = NewCollectionWatcher(ns, events, unsubscribe, c.activeModel, c.tracker, c.extractQ, c.embedQ, c.indexQ)
	return nil
}

// Unwatch stops dispatching events for ns, if it was being watched.
func (c *Coordinator) Unwatch(ns keyspace.NamespaceID) {
	c.mu.Lock()
	w, ok := c.watchers[ns.String()]
	if ok {
		delete(c.watchers, ns.String())
	}
	c.mu.Unlock()

	if ok {
		w.Stop()
	}
}

// DeleteDocument removes doc_id's chunks from the search index, then its
// keyspace entries and hash-index pointer from storage. The index is
// cleared first: if storage deletion then fails, the document is left
// searchable-repairable (a future re-index can restore it from its
// still-present embeddings entry) rather than leaking orphaned chunks
// that nothing will ever clean up.
func (c *Coordinator) DeleteDocument(ns keyspace.NamespaceID, docID string) error {
	if err := c.index.DeleteByParent(docID); err != nil {
		return err
	}
	return c.facade.DeleteDocument(ns, docID)
}

// DeleteCollection drops every chunk belonging to ns from the search
// index, stops watching it, then drops the collection's keyspace itself.
// Symmetric with DeleteDocument: the index is cleared before the
// collection becomes unreachable, so no chunk can outlive the collection
// it came from.
func (c *Coordinator) DeleteCollection(ns keyspace.NamespaceID) error {
	c.Unwatch(ns)
	if err := c.index.DeleteByCollection(ns.String()); err != nil {
		return err
	}
	return c.facade.DeleteCollection(ns)
}

// Shutdown stops every watcher and drains every worker pool. Call once,
// after no more namespaces will be watched.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	watchers := make([]*CollectionWatcher, 0, len(c.watchers))
	for _, w := range c.watchers {
		watchers = append(watchers, w)
	}
	c.watchers = make(map[string]*CollectionWatcher)
	c.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}

	c.extractQ.Close()
	c.embedQ.Close()
	c.indexQ.Close()
	c.extractPool.Wait()
	c.embedPool.Wait()
	c.indexWorker.Wait()
}

// SwitchActiveModel reconciles the search index with a newly active
// embedding model.
//
// It resets the index's embedder registration, then walks every document
// in every watched collection: a document that already has a
// `files/{d}/embeddings/{model_id}` entry for the new model is indexed
// directly from that entry (no re-embedding, since the vectors already
// exist); a document with no matching entry is enqueued for a fresh
// Embed job instead, which will produce one once the new model has run.
func (c *Coordinator) SwitchActiveModel(embedder embedclient.Embedder) error {
	if err := c.index.Reset(); err != nil {
		return err
	}
	c.index.RegisterEmbedder(search.DefaultEmbedderName, embedder.Dimensions())
	c.embedder.Set(embedder)
	c.activeModel.Set(embedder.ModelID())

	c.mu.Lock()
	namespaces := make([]keyspace.NamespaceID, 0, len(c.watchers))
	for key := range c.watchers {
		ns, err := keyspace.ParseNamespaceID(key)
		if err != nil {
			slog.Warn("skipping malformed watched namespace during model switch", slog.String("namespace", key))
			continue
		}
		namespaces = append(namespaces, ns)
	}
	c.mu.Unlock()

	for _, ns := range namespaces {
		docs, err := c.facade.ListDocuments(ns)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if _, err := c.facade.GetEmbeddings(ns, doc.ID, embedder.ModelID()); err == nil {
				c.tracker.Queued(ns.String(), StageIndex, 1)
				c.indexQ.Push(IndexJob{Namespace: ns, DocID: doc.ID, ModelID: embedder.ModelID()})
				continue
			}
			c.tracker.Queued(ns.String(), StageEmbed, 1)
			c.embedQ.Push(EmbedJob{Namespace: ns, DocID: doc.ID})
		}
	}
	return nil
}
