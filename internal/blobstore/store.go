// Package blobstore implements the content-addressed byte store: hash →
// bytes, with permanent tags preventing garbage collection until every
// tag referencing a blob is removed.
package blobstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/keyspace"
)

// Hash is re-exported from keyspace so callers needn't import both
// packages just to pass a hash around.
type Hash = keyspace.Hash

const tagsFileName = "tags.json"

// Store is a content-addressed byte store rooted at a directory
// (`{data_dir}/blobs/`, per ). Any component may read or write;
// writes are idempotent by content hash.
type Store struct {
	dir  string
	lock *fileLock

	mu   sync.Mutex
	tags map[string]map[string]bool // hash hex -> set of tag names
}

// Open opens (creating if necessary) the blob store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptBlob, "create blob store directory "+dir, err)
	}
	s := &Store{
		dir:  dir,
		lock: newFileLock(dir),
		tags: make(map[string]map[string]bool),
	}
	if err := s.loadTags(); err != nil {
		return nil, err
	}
	return s, nil
}

// Put writes data to the store, returning its content hash. A second Put
// of byte-identical data is a no-op beyond recomputing the hash.
func (s *Store) Put(data []byte) (Hash, error) {
	hash := keyspace.HashBytes(data)
	path := s.blobPath(hash)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return hash, apperrors.New(apperrors.ErrCodeCorruptBlob, "create blob shard directory", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return hash, apperrors.New(apperrors.ErrCodeCorruptBlob, "write blob "+hash.String(), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return hash, apperrors.New(apperrors.ErrCodeCorruptBlob, "install blob "+hash.String(), err)
	}
	return hash, nil
}

// Get returns the bytes for hash, or a NotFound error if the blob is not
// present locally (the caller should wait for a ContentReady event).
func (s *Store) Get(hash Hash) ([]byte, error) {
	data, err := os.ReadFile(s.blobPath(hash))
	if os.IsNotExist(err) {
		return nil, apperrors.New(apperrors.ErrCodeBlobNotFound, "blob "+hash.String()+" not found locally", err)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptBlob, "read blob "+hash.String(), err)
	}
	return data, nil
}

// Has reports whether hash's bytes are present locally.
func (s *Store) Has(hash Hash) bool {
	_, err := os.Stat(s.blobPath(hash))
	return err == nil
}

// blobPath shards blobs into 256 subdirectories by the hash's first byte,
// avoiding tens of thousands of files in one flat directory.
func (s *Store) blobPath(hash Hash) string {
	hex := hash.String()
	return filepath.Join(s.dir, hex[:2], hex[2:])
}
