package blobstore

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/insightd/internal/apperrors"
)

// fileLock provides cross-process exclusive locking around the tag-set
// file, using gofrs/flock so multiple insightd processes sharing one
// data directory (e.g. a CLI invocation racing the long-running daemon)
// don't corrupt each other's tag writes.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newFileLock(dir string) *fileLock {
	path := filepath.Join(dir, ".blobstore.lock")
	return &fileLock{path: path, flock: flock.New(path)}
}

func (l *fileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptBlob, "create blob store lock directory", err)
	}
	if err := l.flock.Lock(); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptBlob, "acquire blob store lock", err)
	}
	l.locked = true
	return nil
}

func (l *fileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	err := l.flock.Unlock()
	l.locked = false
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptBlob, "release blob store lock", err)
	}
	return nil
}
