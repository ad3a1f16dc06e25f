package pipeline

import (
	"log/slog"

	"github.com/Aman-CERP/insightd/internal/keyspace"
)

// CollectionWatcher subscribes to one namespace's change events and
// dispatches jobs to the extract, embed, and index pools by classifying
// each event's key. It holds only the job queues (not the
// pools themselves) and a weak reference to the active-model cell, so it
// never closes a reference cycle back to whatever owns it.
type CollectionWatcher struct {
	ns       keyspace.NamespaceID
	activeModel *ActiveModelCell
	tracker  *Tracker

	extractQ *unboundedQueue[ExtractJob]
	embedQ   *unboundedQueue[EmbedJob]
	indexQ   *unboundedQueue[IndexJob]

	unsubscribe func()
	done        chan struct{}
}

// NewCollectionWatcher returns a watcher for ns that is already
// dispatching events in its own goroutine; Stop calls unsubscribe and
// waits for that goroutine to exit.
func NewCollectionWatcher(
	ns keyspace.NamespaceID,
	events <-chan keyspace.ChangeEvent,
	unsubscribe func(),
	activeModel *ActiveModelCell,
	tracker *Tracker,
	extractQ *unboundedQueue[ExtractJob],
	embedQ *unboundedQueue[EmbedJob],
	indexQ *unboundedQueue[IndexJob],
) *CollectionWatcher {
	w := &CollectionWatcher{
		ns:          ns,
		activeModel: activeModel,
		tracker:     tracker,
		extractQ:    extractQ,
		embedQ:      embedQ,
		indexQ:      indexQ,
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
	go w.run(events)
	return w
}

// Stop unsubscribes from the keyspace and waits for the dispatch
// goroutine to exit.
func (w *CollectionWatcher) Stop() {
	w.unsubscribe()
	<-w.done
}

func (w *CollectionWatcher) run(events <-chan keyspace.ChangeEvent) {
	defer close(w.done)
	for ev := range events {
		w.dispatch(ev)
	}
}

// dispatch classifies one change event and enqueues the corresponding
// job. ContentReady and SyncFinished carry
// no key to classify and are not pipeline triggers on their own; a
// subsequent InsertRemote or InsertLocal for the now-available content is
// what the watcher acts on.
func (w *CollectionWatcher) dispatch(ev keyspace.ChangeEvent) {
	switch e := ev.(type) {
	case keyspace.InsertLocal:
		w.dispatchEntry(e.Entry.Key, true)
	case keyspace.InsertRemote:
		w.dispatchEntry(e.Entry.Key, false)
	case keyspace.ContentReady, keyspace.SyncFinished:
		// No action: these don't name a key. The entry that becomes
		// readable fires its own InsertRemote separately.
	}
}

func (w *CollectionWatcher) dispatchEntry(key string, local bool) {
	pattern, docID, modelID := keyspace.Classify(key)

	switch pattern {
	case keyspace.PatternSource:
		if !local {
			// A peer that shipped text already extracted locally;
			// re-extracting here would duplicate work.
			return
		}
		w.tracker.Queued(w.ns.String(), StageExtract, 1)
		w.extractQ.Push(ExtractJob{Namespace: w.ns, DocID: docID})

	case keyspace.PatternText:
		w.tracker.Queued(w.ns.String(), StageEmbed, 1)
		w.embedQ.Push(EmbedJob{Namespace: w.ns, DocID: docID})

	case keyspace.PatternEmbeddings:
		if modelID != w.activeModel.Get() {
			slog.Debug("ignoring embeddings for inactive model",
				slog.String("collection", w.ns.String()),
				slog.String("doc_id", docID),
				slog.String("model_id", modelID))
			return
		}
		w.tracker.Queued(w.ns.String(), StageIndex, 1)
		w.indexQ.Push(IndexJob{Namespace: w.ns, DocID: docID, ModelID: modelID})

	case keyspace.PatternIgnored:
		// _collection, _hash_index/*, files/{d}/meta, anything else.
	}
}
