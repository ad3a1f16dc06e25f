package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWrapping_PreservesChainThroughStdlibFmt verifies an Error wrapped with
// fmt.Errorf("%w", ...) still resolves with errors.As and errors.Is.
func TestWrapping_PreservesChainThroughStdlibFmt(t *testing.T) {
	base := New(ErrCodeBlobNotFound, "blob sha256:abc not found", nil)
	wrapped := fmt.Errorf("store_source: %w", base)

	var ae *Error
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, ErrCodeBlobNotFound, ae.Code)
	assert.True(t, errors.Is(wrapped, New(ErrCodeBlobNotFound, "different message", nil)))
}

// TestWrapping_ChainOfCauses verifies Cause is preserved across multiple
// levels of Wrap, so the original low-level error survives to the log.
func TestWrapping_ChainOfCauses(t *testing.T) {
	root := errors.New("bbolt: tx not writable")
	mid := Wrap(ErrCodeIndexTxFailed, root)
	top := New(ErrCodeInternal, "commit failed", mid)

	assert.Equal(t, mid, errors.Unwrap(top))
	assert.Equal(t, root, errors.Unwrap(mid))
	assert.True(t, errors.Is(top, root))
}

// TestWrapping_GetCodeAndCategoryAcrossChain verifies GetCode/GetCategory
// look at the outermost *Error in a chain, not the root cause.
func TestWrapping_GetCodeAndCategoryAcrossChain(t *testing.T) {
	root := errors.New("dial tcp: connection refused")
	err := New(ErrCodePeerUnreachable, "peer unreachable", root)

	assert.Equal(t, ErrCodePeerUnreachable, GetCode(err))
	assert.Equal(t, CategoryTransientTransport, GetCategory(err))
	assert.Equal(t, "", GetCode(root))
}
