package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/keyspace"
)

// StoreSource reads path's bytes, tags them in the blob store, and writes
// only `files/{doc_id}/source` — extraction is a separate step.
// Duplicate detection is O(1): a source hash already
// present in `_hash_index` fails without writing anything.
func (f *Facade) StoreSource(ns keyspace.NamespaceID, path string) (docID string, hash keyspace.Hash, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", keyspace.Hash{}, apperrors.New(apperrors.ErrCodeNotAPDF, "read source file "+path, err)
	}

	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return "", keyspace.Hash{}, err
	}

	sourceHash := keyspace.HashBytes(data)
	if _, found, err := ks.Get(keyspace.HashIndexKey(sourceHash)); err != nil {
		return "", keyspace.Hash{}, err
	} else if found {
		return "", sourceHash, apperrors.New(apperrors.ErrCodeDuplicateSource, "source already imported into this collection", nil)
	}

	id := uuid.NewString()
	blobHash, err := f.blobs.Put(data)
	if err != nil {
		return "", keyspace.Hash{}, err
	}
	if err := f.blobs.Tag(blobHash, ns.String()+"/"+keyspace.SourceKey(id)); err != nil {
		return "", keyspace.Hash{}, err
	}
	if _, err := ks.Put(keyspace.SourceKey(id), blobHash, int64(len(data)), f.author); err != nil {
		return "", keyspace.Hash{}, err
	}

	f.pendingNamesMu.Lock()
	f.pendingNames[docCacheKey{ns: ns, docID: id}] = filepath.Base(path)
	f.pendingNamesMu.Unlock()

	return id, blobHash, nil
}

// ExtractAndStoreText reads `files/{doc_id}/source`, calls the extractor,
// and writes `files/{doc_id}/text` then `files/{doc_id}/meta`, plus the
// `_hash_index` dedup entry. Text is written before meta so
// that a consumer racing the write sees at worst a brief meta absence,
// never the reverse.
func (f *Facade) ExtractAndStoreText(ns keyspace.NamespaceID, docID string) (DocumentMetadata, error) {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return DocumentMetadata{}, err
	}

	sourceEntry, found, err := ks.Get(keyspace.SourceKey(docID))
	if err != nil {
		return DocumentMetadata{}, err
	}
	if !found {
		return DocumentMetadata{}, apperrors.New(apperrors.ErrCodeDocumentNotFound, "document "+docID+" has no source entry", nil)
	}
	source, err := f.blobs.Get(sourceEntry.Hash)
	if err != nil {
		return DocumentMetadata{}, err
	}

	text, pageCount, pageBoundaries, err := f.extractor.Extract(source)
	if err != nil {
		return DocumentMetadata{}, apperrors.New(apperrors.ErrCodeExtractFailed, "extract text from document "+docID, err)
	}

	textBytes := []byte(text)
	textHash, err := f.blobs.Put(textBytes)
	if err != nil {
		return DocumentMetadata{}, err
	}
	if err := f.blobs.Tag(textHash, ns.String()+"/"+keyspace.TextKey(docID)); err != nil {
		return DocumentMetadata{}, err
	}
	if _, err := ks.Put(keyspace.TextKey(docID), textHash, int64(len(textBytes)), f.author); err != nil {
		return DocumentMetadata{}, err
	}

	meta := DocumentMetadata{
		ID:             docID,
		Name:           f.takePendingName(ns, docID),
		SourceHash:     sourceEntry.Hash.String(),
		TextHash:       textHash.String(),
		PageCount:      pageCount,
		CreatedAt:      time.Now(),
		PageBoundaries: pageBoundaries,
	}
	if err := f.putJSON(ks, keyspace.MetaKey(docID), meta); err != nil {
		return DocumentMetadata{}, err
	}

	docIDHash, err := f.blobs.Put([]byte(docID))
	if err != nil {
		return DocumentMetadata{}, err
	}
	if err := f.blobs.Tag(docIDHash, ns.String()+"/"+keyspace.HashIndexKey(sourceEntry.Hash)); err != nil {
		return DocumentMetadata{}, err
	}
	if _, err := ks.Put(keyspace.HashIndexKey(sourceEntry.Hash), docIDHash, int64(len(docID)), f.author); err != nil {
		return DocumentMetadata{}, err
	}

	f.docCache.Remove(docCacheKey{ns: ns, docID: docID})
	return meta, nil
}

// takePendingName consumes (and clears) the display name StoreSource
// recorded for docID, falling back to docID itself — the case for a
// document whose text arrived from a remote peer, for which this node
// never called StoreSource.
func (f *Facade) takePendingName(ns keyspace.NamespaceID, docID string) string {
	key := docCacheKey{ns: ns, docID: docID}
	f.pendingNamesMu.Lock()
	name, ok := f.pendingNames[key]
	if ok {
		delete(f.pendingNames, key)
	}
	f.pendingNamesMu.Unlock()
	if !ok {
		return docID
	}
	return name
}

// GetDocument returns doc_id's metadata, served from an LRU cache keyed by
// (namespace, doc_id) on a hit.
func (f *Facade) GetDocument(ns keyspace.NamespaceID, docID string) (DocumentMetadata, error) {
	key := docCacheKey{ns: ns, docID: docID}
	if meta, ok := f.docCache.Get(key); ok {
		return meta, nil
	}

	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return DocumentMetadata{}, err
	}

	var meta DocumentMetadata
	found, err := f.getJSON(ks, keyspace.MetaKey(docID), &meta)
	if err != nil {
		return DocumentMetadata{}, err
	}
	if !found {
		return DocumentMetadata{}, apperrors.New(apperrors.ErrCodeDocumentNotFound, "document "+docID+" not found", nil)
	}

	f.docCache.Add(key, meta)
	return meta, nil
}

// ListDocuments returns every document with a meta entry in ns.
func (f *Facade) ListDocuments(ns keyspace.NamespaceID) ([]DocumentMetadata, error) {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return nil, err
	}

	keys, err := ks.Keys("files/")
	if err != nil {
		return nil, err
	}

	var docs []DocumentMetadata
	for _, key := range keys {
		if !isMetaKey(key) {
			continue
		}
		var meta DocumentMetadata
		found, err := f.getJSON(ks, key, &meta)
		if err != nil {
			return nil, err
		}
		if found {
			docs = append(docs, meta)
		}
	}
	return docs, nil
}

func isMetaKey(key string) bool {
	const suffix = "/meta"
	return len(key) > len(suffix) && key[len(key)-len(suffix):] == suffix
}

// DeleteDocument removes every `files/{doc_id}/*` key then the
// `_hash_index` pointer for its source hash. Blob GC is deferred to the
// blob store: untagging here makes the blobs collectable, not gone. This
// method knows nothing about the search index; callers that need the
// document's chunks removed too should go through
// pipeline.Coordinator.DeleteDocument instead of calling this directly.
func (f *Facade) DeleteDocument(ns keyspace.NamespaceID, docID string) error {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return err
	}

	entries, err := ks.List(keyspace.DocumentPrefix(docID))
	if err != nil {
		return err
	}

	var sourceHash keyspace.Hash
	var haveSourceHash bool
	for _, entry := range entries {
		if entry.Key == keyspace.SourceKey(docID) {
			sourceHash = entry.Hash
			haveSourceHash = true
		}
		if err := f.blobs.Untag(entry.Hash, ns.String()+"/"+entry.Key); err != nil {
			return err
		}
		if err := ks.Delete(entry.Key); err != nil {
			return err
		}
	}

	if haveSourceHash {
		hashIndexKey := keyspace.HashIndexKey(sourceHash)
		if entry, found, err := ks.Get(hashIndexKey); err != nil {
			return err
		} else if found {
			if err := f.blobs.Untag(entry.Hash, ns.String()+"/"+hashIndexKey); err != nil {
				return err
			}
		}
		if err := ks.Delete(hashIndexKey); err != nil {
			return err
		}
	}

	f.docCache.Remove(docCacheKey{ns: ns, docID: docID})
	return nil
}

// StoreEmbeddings writes `files/{doc_id}/embeddings/{model_id}`.
func (f *Facade) StoreEmbeddings(ns keyspace.NamespaceID, docID string, data EmbeddingData) error {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return err
	}
	return f.putJSON(ks, keyspace.EmbeddingsKey(docID, data.ModelID), data)
}

// GetEmbeddings returns doc_id's embeddings for modelID.
func (f *Facade) GetEmbeddings(ns keyspace.NamespaceID, docID, modelID string) (EmbeddingData, error) {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return EmbeddingData{}, err
	}

	var data EmbeddingData
	found, err := f.getJSON(ks, keyspace.EmbeddingsKey(docID, modelID), &data)
	if err != nil {
		return EmbeddingData{}, err
	}
	if !found {
		return EmbeddingData{}, apperrors.New(apperrors.ErrCodeDocumentNotFound, "no embeddings for document "+docID+" under model "+modelID, nil)
	}
	return data, nil
}

// HasSourceHash reports whether a document with the given source hash
// currently exists in ns, used by deletion-completeness checks: after a
// delete, this must return false for the deleted document's source hash.
func (f *Facade) HasSourceHash(ns keyspace.NamespaceID, hash keyspace.Hash) (bool, error) {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return false, err
	}
	_, found, err := ks.Get(keyspace.HashIndexKey(hash))
	return found, err
}

// GetText returns the extracted text for doc_id, read directly from the
// `files/{doc_id}/text` entry. The embed worker pool calls this rather
// than going through meta, since text is written before meta and a
// peer-supplied document may have text without meta having replicated
// yet.
func (f *Facade) GetText(ns keyspace.NamespaceID, docID string) (string, error) {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return "", err
	}
	entry, found, err := ks.Get(keyspace.TextKey(docID))
	if err != nil {
		return "", err
	}
	if !found {
		return "", apperrors.New(apperrors.ErrCodeDocumentNotFound, "document "+docID+" has no text entry", nil)
	}
	data, err := f.blobs.Get(entry.Hash)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
