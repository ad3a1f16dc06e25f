// Package keyspace implements the per-collection, content-addressed,
// multi-writer key→(hash,len) store the rest of the pipeline treats as
// replicated by the P2P transport. The transport itself — the part that
// actually moves entries between peers — is out of scope; this package models the local replica each
// node holds and the change-event stream pipeline stages subscribe to.
package keyspace

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Hash is a content hash as used to address blob-store bytes.
type Hash [32]byte

// HashBytes computes the content hash of b.
func HashBytes(b []byte) Hash {
	return sha256.Sum256(b)
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ParseHash decodes a hex-encoded hash string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, errInvalidHashLength
	}
	copy(h[:], b)
	return h, nil
}

// Entry is one key's current value in a namespace's keyspace: a content
// hash and length rather than the bytes themselves — the bytes live in
// the blob store, addressed by Hash.
type Entry struct {
	Key       string
	Hash      Hash
	Length    int64
	Author    string
	Timestamp time.Time
}

// ContentStatus describes whether the bytes behind a remote entry's hash
// are already present in the local blob store.
type ContentStatus int

const (
	// ContentComplete means the blob referenced by the entry is already
	// present locally.
	ContentComplete ContentStatus = iota
	// ContentMissing means the blob has not yet arrived; a later
	// ContentReady event will announce it.
	ContentMissing
)

// ChangeEvent is one of InsertLocal, InsertRemote, ContentReady, or
// SyncFinished — the four notifications a collection watcher classifies.
type ChangeEvent interface {
	isChangeEvent()
}

// InsertLocal announces an entry written by this node.
type InsertLocal struct {
	Entry Entry
}

// InsertRemote announces an entry that arrived from a peer.
type InsertRemote struct {
	Entry         Entry
	ContentStatus ContentStatus
}

// ContentReady announces that a previously-missing blob has finished
// downloading and is now readable from the blob store.
type ContentReady struct {
	Hash Hash
}

// SyncFinished announces the completion of a sync round with a peer.
// Result is nil on success.
type SyncFinished struct {
	Result error
}

func (InsertLocal) isChangeEvent()  {}
func (InsertRemote) isChangeEvent() {}
func (ContentReady) isChangeEvent() {}
func (SyncFinished) isChangeEvent() {}
