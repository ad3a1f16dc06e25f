package keyspace

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/Aman-CERP/insightd/internal/apperrors"
)

var errInvalidHashLength = apperrors.New(apperrors.ErrCodeMalformedNamespace, "keyspace: wrong hash length", nil)

// NamespaceID is the opaque 32-byte identifier of a collection.
type NamespaceID [32]byte

// NewNamespaceID generates a fresh random namespace id for a newly created
// collection.
func NewNamespaceID() (NamespaceID, error) {
	var id NamespaceID
	if _, err := rand.Read(id[:]); err != nil {
		return id, err
	}
	return id, nil
}

// String renders the namespace id as lowercase hex.
func (id NamespaceID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero namespace.
func (id NamespaceID) IsZero() bool {
	return id == NamespaceID{}
}

// ParseNamespaceID decodes a hex-encoded namespace id, as found in a share
// ticket or a CLI argument.
func ParseNamespaceID(s string) (NamespaceID, error) {
	var id NamespaceID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, apperrors.New(apperrors.ErrCodeMalformedNamespace, "malformed namespace id: "+s, err)
	}
	if len(b) != len(id) {
		return id, apperrors.New(apperrors.ErrCodeMalformedNamespace, "namespace id must be 32 bytes, got "+hex.EncodeToString(b), nil)
	}
	copy(id[:], b)
	return id, nil
}

// NewAuthorID generates a fresh author id for entries written by this node.
func NewAuthorID() string {
	return uuid.NewString()
}
