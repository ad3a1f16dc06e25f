package keyspace

import "fmt"

// Fixed and templated key names within a namespace's keyspace.
const (
	CollectionKey = "_collection"
	HashIndexRoot = "_hash_index/"
)

// SourceKey returns the key for a document's original file bytes.
func SourceKey(docID string) string { return fmt.Sprintf("files/%s/source", docID) }

// TextKey returns the key for a document's extracted text.
func TextKey(docID string) string { return fmt.Sprintf("files/%s/text", docID) }

// MetaKey returns the key for a document's metadata.
func MetaKey(docID string) string { return fmt.Sprintf("files/%s/meta", docID) }

// EmbeddingsKey returns the key for a document's per-model embeddings.
func EmbeddingsKey(docID, modelID string) string {
	return fmt.Sprintf("files/%s/embeddings/%s", docID, modelID)
}

// EmbeddingsPrefix returns the key prefix matching every embeddings entry
// for a document, across all model ids.
func EmbeddingsPrefix(docID string) string {
	return fmt.Sprintf("files/%s/embeddings/", docID)
}

// DocumentPrefix returns the key prefix matching every entry for a
// document, used by delete_document to remove `files/{doc_id}/*`.
func DocumentPrefix(docID string) string {
	return fmt.Sprintf("files/%s/", docID)
}

// HashIndexKey returns the dedup-index key for a source content hash.
func HashIndexKey(sourceHash Hash) string {
	return HashIndexRoot + sourceHash.String()
}

// KeyPattern classifies a key for the collection watcher.
type KeyPattern int

const (
	// PatternSource matches files/{d}/source.
	PatternSource KeyPattern = iota
	// PatternText matches files/{d}/text.
	PatternText
	// PatternEmbeddings matches files/{d}/embeddings/{m}.
	PatternEmbeddings
	// PatternIgnored matches _collection, _hash_index/*, files/{d}/meta,
	// and anything else the watcher has no action for.
	PatternIgnored
)

// Classify returns the pattern a key belongs to, and for PatternEmbeddings
// the document id and model id it names.
func Classify(key string) (pattern KeyPattern, docID string, modelID string) {
	docID, ok := docIDFromKey(key)
	if !ok {
		return PatternIgnored, "", ""
	}

	switch {
	case key == SourceKey(docID):
		return PatternSource, docID, ""
	case key == TextKey(docID):
		return PatternText, docID, ""
	default:
		if m, ok := modelIDFromEmbeddingsKey(key); ok {
			return PatternEmbeddings, docID, m
		}
		return PatternIgnored, "", ""
	}
}
