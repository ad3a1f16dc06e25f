package keyspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Source(t *testing.T) {
	pattern, docID, modelID := Classify(SourceKey("d1"))

	assert.Equal(t, PatternSource, pattern)
	assert.Equal(t, "d1", docID)
	assert.Empty(t, modelID)
}

func TestClassify_Text(t *testing.T) {
	pattern, docID, _ := Classify(TextKey("d1"))

	assert.Equal(t, PatternText, pattern)
	assert.Equal(t, "d1", docID)
}

func TestClassify_Embeddings(t *testing.T) {
	pattern, docID, modelID := Classify(EmbeddingsKey("d1", "bge-base-en-v1.5"))

	assert.Equal(t, PatternEmbeddings, pattern)
	assert.Equal(t, "d1", docID)
	assert.Equal(t, "bge-base-en-v1.5", modelID)
}

func TestClassify_IgnoredKeys(t *testing.T) {
	for _, key := range []string{CollectionKey, HashIndexKey(Hash{}), MetaKey("d1")} {
		pattern, _, _ := Classify(key)
		assert.Equal(t, PatternIgnored, pattern, "key %q should be ignored", key)
	}
}

func TestNamespaceID_RoundTripsThroughString(t *testing.T) {
	ns, err := NewNamespaceID()
	assert.NoError(t, err)

	parsed, err := ParseNamespaceID(ns.String())
	assert.NoError(t, err)
	assert.Equal(t, ns, parsed)
}

func TestParseNamespaceID_RejectsWrongLength(t *testing.T) {
	_, err := ParseNamespaceID("abcd")

	assert.Error(t, err)
}
