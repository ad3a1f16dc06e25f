package blobstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/keyspace"
)

// Tag records a permanent reference from tag to hash, preventing GC from
// reclaiming it. Callers tag a blob when they write a keyspace entry
// pointing at it (e.g. "files/{doc_id}/source") and untag it when that
// entry is deleted.
func (s *Store) Tag(hash Hash, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hash.String()
	if s.tags[key] == nil {
		s.tags[key] = make(map[string]bool)
	}
	s.tags[key][tag] = true
	return s.saveTagsLocked()
}

// Untag removes tag's reference to hash. The blob's bytes remain on disk
// — reachable by any other tag still referencing it, or collectable by
// GC once no tag remains — until GC runs.
func (s *Store) Untag(hash Hash, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hash.String()
	if s.tags[key] != nil {
		delete(s.tags[key], tag)
		if len(s.tags[key]) == 0 {
			delete(s.tags, key)
		}
	}
	return s.saveTagsLocked()
}

// Tags returns every tag currently referencing hash.
func (s *Store) Tags(hash Hash) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagSet := s.tags[hash.String()]
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	return tags
}

// IsReferenced reports whether hash has at least one tag.
func (s *Store) IsReferenced(hash Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tags[hash.String()]) > 0
}

// GC deletes every locally-stored blob with no remaining tag and returns
// the hashes it removed. This is the "tags for entries no longer
// referenced become collectable" half of delete_document.
func (s *Store) GC() ([]Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Hash
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if filepath.Base(path) == tagsFileName {
			return nil
		}
		hash, ok := hashFromPath(s.dir, path)
		if !ok {
			return nil
		}
		if len(s.tags[hash.String()]) > 0 {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed = append(removed, hash)
		return nil
	})
	if err != nil {
		return removed, apperrors.New(apperrors.ErrCodeCorruptBlob, "garbage collect blob store", err)
	}
	return removed, nil
}

func hashFromPath(root, path string) (Hash, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return Hash{}, false
	}
	dir, file := filepath.Split(rel)
	dir = filepath.Clean(dir)
	if len(dir) != 2 || len(file) != 62 {
		return Hash{}, false
	}
	hash, err := keyspace.ParseHash(dir + file)
	if err != nil {
		return Hash{}, false
	}
	return hash, true
}

func (s *Store) loadTags() error {
	path := filepath.Join(s.dir, tagsFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptBlob, "read blob store tags file", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptBlob, "parse blob store tags file", err)
	}
	for hash, tagList := range raw {
		set := make(map[string]bool, len(tagList))
		for _, t := range tagList {
			set[t] = true
		}
		s.tags[hash] = set
	}
	return nil
}

// saveTagsLocked persists the tag map under the cross-process file lock.
// Callers must hold s.mu.
func (s *Store) saveTagsLocked() error {
	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	raw := make(map[string][]string, len(s.tags))
	for hash, set := range s.tags {
		tags := make([]string, 0, len(set))
		for t := range set {
			tags = append(tags, t)
		}
		raw[hash] = tags
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptBlob, "marshal blob store tags", err)
	}

	path := filepath.Join(s.dir, tagsFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptBlob, "write blob store tags file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptBlob, "install blob store tags file", err)
	}
	return nil
}
