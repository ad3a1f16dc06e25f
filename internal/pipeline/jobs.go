package pipeline

import "github.com/Aman-CERP/insightd/internal/keyspace"

// ExtractJob asks the extract pool to turn a document's source bytes into
// text and metadata.
type ExtractJob struct {
	Namespace keyspace.NamespaceID
	DocID     string
}

// EmbedJob asks the embed pool to chunk and embed a document's text.
type EmbedJob struct {
	Namespace keyspace.NamespaceID
	DocID     string
}

// IndexJob asks the index pool to (re)index a document's chunks under
// ModelID.
type IndexJob struct {
	Namespace keyspace.NamespaceID
	DocID     string
	ModelID   string
}

// DocumentFailed reports a per-document pipeline failure tagged to its
// originating collection, for surfacing to a UI or log sink.
type DocumentFailed struct {
	Namespace keyspace.NamespaceID
	DocID     string
	Stage     Stage
	Err       error
}

// DocumentCompleted reports a document reaching the searchable state.
type DocumentCompleted struct {
	Namespace keyspace.NamespaceID
	DocID     string
}
