// Package search implements the hybrid keyword+vector search index: a
// bleve index over chunk content for the BM25 half and a coder/hnsw graph
// over chunk vectors for the dense-retrieval half, composed behind a
// single Index type that blends both per a caller-supplied semantic_ratio.
// One row per `{doc_id}_chunk_{index}` with `collection_id`/`parent_id` as
// the only filterable fields.
package search

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/coder/hnsw"

	"github.com/Aman-CERP/insightd/internal/apperrors"
)

// DefaultEmbedderName is the single named embedder slot the index accepts
// pre-computed vectors under.
const DefaultEmbedderName = "default"

// ChunkRow is one row of the chunk index: primary key `{doc_id}_chunk_{index}`, `content` already
// carrying its `[parent_name]\n\n` prefix, and the fields the hybrid
// query and the agent's read_chunk tool read back.
type ChunkRow struct {
	ID           string
	ParentID     string
	ParentName   string
	ChunkIndex   int
	Content      string
	CollectionID string
	PageCount    int
	StartPage    int
	EndPage      int
	Vector       []float32
}

// RowID returns the primary key for a (doc, chunk index) pair.
func RowID(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, chunkIndex)
}

// bleveDoc is the stored/indexed shape persisted in the bleve index. Only
// ParentID and CollectionID are filterable per ; the rest are
// stored-only fields the query path reads back to assemble a Hit.
type bleveDoc struct {
	Content      string `json:"content"`
	ParentID     string `json:"parent_id"`
	ParentName   string `json:"parent_name"`
	ChunkIndex   int    `json:"chunk_index"`
	CollectionID string `json:"collection_id"`
	PageCount    int    `json:"page_count"`
	StartPage    int    `json:"start_page"`
	EndPage      int    `json:"end_page"`
}

// embedderConfig is the index's registered "default" embedder: it exists
// only to reject vectors of the wrong width at upsert time.
type embedderConfig struct {
	name       string
	dimensions int
}

// Index is the hybrid keyword+vector chunk index. It is safe for
// concurrent use by many readers and the single index worker writer.
type Index struct {
	mu sync.RWMutex

	bleveIndex bleve.Index
	blevePath  string

	graph       *hnsw.Graph[uint64]
	idMap       map[string]uint64 // row id -> hnsw key
	keyMap      map[uint64]string // hnsw key -> row id
	nextKey     uint64
	vectorsPath string

	embedder embedderConfig
}

// Open opens (or creates) a hybrid index rooted at dir
// (`{data_dir}/search/` disk layout).
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptIndex, "create search index directory "+dir, err)
	}

	blevePath := filepath.Join(dir, "chunks.bleve")
	bi, err := openBleve(blevePath)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		bleveIndex:  bi,
		blevePath:   blevePath,
		graph:       newGraph(),
		idMap:       make(map[string]uint64),
		keyMap:      make(map[uint64]string),
		vectorsPath: filepath.Join(dir, "vectors.hnsw"),
	}

	if err := idx.loadVectors(); err != nil {
		return nil, err
	}
	return idx, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return g
}

func openBleve(path string) (bleve.Index, error) {
	m := buildMapping()
	bi, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return bleve.New(path, m)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptIndex, "open bleve chunk index "+path, err)
	}
	return bi, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()

	contentField := bleve.NewTextFieldMapping()

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = "keyword"

	storedOnly := bleve.NewNumericFieldMapping()
	storedOnly.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", contentField)
	doc.AddFieldMappingsAt("parent_id", keywordField)
	doc.AddFieldMappingsAt("collection_id", keywordField)

	parentNameField := bleve.NewTextFieldMapping()
	parentNameField.Index = false
	doc.AddFieldMappingsAt("parent_name", parentNameField)
	doc.AddFieldMappingsAt("chunk_index", storedOnly)
	doc.AddFieldMappingsAt("page_count", storedOnly)
	doc.AddFieldMappingsAt("start_page", storedOnly)
	doc.AddFieldMappingsAt("end_page", storedOnly)

	m.DefaultMapping = doc
	return m
}

// RegisterEmbedder configures the index to accept pre-computed vectors of
// width dimensions under name (only DefaultEmbedderName is used by this
// pipeline). A vector of any other width is rejected by Upsert.
func (idx *Index) RegisterEmbedder(name string, dimensions int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.embedder = embedderConfig{name: name, dimensions: dimensions}
}

// Reset clears every chunk row and vector, used when the active embedding
// model changes.
func (idx *Index) Reset() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.bleveIndex.Close(); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "close bleve index before reset", err)
	}
	if err := os.RemoveAll(idx.blevePath); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "remove bleve index before reset", err)
	}
	bi, err := bleve.New(idx.blevePath, buildMapping())
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "recreate bleve index", err)
	}
	idx.bleveIndex = bi

	idx.graph = newGraph()
	idx.idMap = make(map[string]uint64)
	idx.keyMap = make(map[uint64]string)
	idx.nextKey = 0
	return nil
}

// Upsert writes rows into both the keyword and vector halves of the
// index in one call. A row whose Vector is nil is indexed for BM25 only
// (callers always supply one here; nil is only used by tests exercising
// the keyword path in isolation).
func (idx *Index) Upsert(rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	batch := idx.bleveIndex.NewBatch()
	for _, row := range rows {
		if row.Vector != nil && idx.embedder.dimensions != 0 && len(row.Vector) != idx.embedder.dimensions {
			return apperrors.New(apperrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("row %s: vector has %d dimensions, embedder %q expects %d",
					row.ID, len(row.Vector), idx.embedder.name, idx.embedder.dimensions), nil)
		}

		doc := bleveDoc{
			Content:      row.Content,
			ParentID:     row.ParentID,
			ParentName:   row.ParentName,
			ChunkIndex:   row.ChunkIndex,
			CollectionID: row.CollectionID,
			PageCount:    row.PageCount,
			StartPage:    row.StartPage,
			EndPage:      row.EndPage,
		}
		if err := batch.Index(row.ID, doc); err != nil {
			return apperrors.New(apperrors.ErrCodeIndexTxFailed, "stage upsert for "+row.ID, err)
		}
	}
	if err := idx.bleveIndex.Batch(batch); err != nil {
		return apperrors.New(apperrors.ErrCodeIndexTxFailed, "commit upsert batch", err)
	}

	for _, row := range rows {
		if row.Vector == nil {
			continue
		}
		idx.addVectorLocked(row.ID, row.Vector)
	}
	return idx.saveVectorsLocked()
}

func (idx *Index) addVectorLocked(id string, vector []float32) {
	if existing, ok := idx.idMap[id]; ok {
		delete(idx.keyMap, existing)
		delete(idx.idMap, id)
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalize(vec)

	key := idx.nextKey
	idx.nextKey++
	idx.graph.Add(hnsw.MakeNode(key, vec))
	idx.idMap[id] = key
	idx.keyMap[key] = id
}

// DeleteByParent removes every chunk row (and its vector) with
// ParentID == parentID, implementing the "delete stale chunks for a
// document" step of the index worker and the deletion
// invariant of property 6.
func (idx *Index) DeleteByParent(parentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.deleteByTermLocked("parent_id", parentID)
}

// DeleteByCollection removes every chunk row (and its vector) with
// CollectionID == collectionID, used when a whole collection is dropped
// so its chunks don't linger in the index after the collection itself is
// unreachable.
func (idx *Index) DeleteByCollection(collectionID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.deleteByTermLocked("collection_id", collectionID)
}

func (idx *Index) deleteByTermLocked(field, value string) error {
	ids, err := idx.idsForTermLocked(field, value)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	batch := idx.bleveIndex.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
		if key, ok := idx.idMap[id]; ok {
			delete(idx.keyMap, key)
			delete(idx.idMap, id)
		}
	}
	if err := idx.bleveIndex.Batch(batch); err != nil {
		return apperrors.New(apperrors.ErrCodeIndexTxFailed, "delete chunks for "+field+"="+value, err)
	}
	return idx.saveVectorsLocked()
}

// idsForTermLocked lists every row id with field == value. Capped at
// 100,000 rows: no document or collection plausibly produces more chunks
// than that, and an unbounded bleve query would otherwise hold the whole
// result set in memory.
func (idx *Index) idsForTermLocked(field, value string) ([]string, error) {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	req := bleve.NewSearchRequestOptions(q, 100000, 0, false)
	res, err := idx.bleveIndex.Search(req)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexTxFailed, "list chunks for "+field+"="+value, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// AllVectorsByModel is not part of the schema (the index holds only the
// currently-active model's vectors); reconciliation on a model switch
// instead re-walks storage.Facade's embeddings entries directly (see
// pipeline.Coordinator.SwitchActiveModel).

// GetChunk returns the row at (docID, chunkIndex), used by the agent's
// read_chunk tool.
func (idx *Index) GetChunk(docID string, chunkIndex int) (ChunkRow, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	id := RowID(docID, chunkIndex)
	rows, err := idx.rowsByIDsLocked([]string{id})
	if err != nil {
		return ChunkRow{}, false, apperrors.New(apperrors.ErrCodeChunkNotFound, "load chunk "+id, err)
	}
	row, ok := rows[id]
	if !ok {
		return ChunkRow{}, false, nil
	}
	return row, true, nil
}

// rowsByIDsLocked fetches the stored field values for a set of row ids in
// one bleve search, the standard bleve v2 way to read stored fields back
// (SearchRequest.Fields = []string{"*"} populates SearchResult.Hit.Fields
// as a map[string]interface{}, one entry per row). Missing ids are simply
// absent from the returned map. Must be called with idx.mu held (for
// reading).
func (idx *Index) rowsByIDsLocked(ids []string) (map[string]ChunkRow, error) {
	if len(ids) == 0 {
		return map[string]ChunkRow{}, nil
	}
	q := bleve.NewDocIDQuery(ids)
	req := bleve.NewSearchRequestOptions(q, len(ids), 0, false)
	req.Fields = []string{"*"}
	res, err := idx.bleveIndex.Search(req)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexTxFailed, "load chunk rows", err)
	}

	rows := make(map[string]ChunkRow, len(res.Hits))
	for _, hit := range res.Hits {
		rows[hit.ID] = rowFromFields(hit.ID, hit.Fields)
	}
	return rows, nil
}

// Close releases the bleve index handle. The vector half has no handle
// to release; it was already persisted on the last Upsert/DeleteByParent.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.bleveIndex.Close()
}

func (idx *Index) loadVectors() error {
	metaPath := idx.vectorsPath + ".meta"
	metaFile, err := os.Open(metaPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "open vector metadata", err)
	}
	defer func() { _ = metaFile.Close() }()

	var meta struct {
		IDMap   map[string]uint64
		NextKey uint64
	}
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "decode vector metadata", err)
	}
	idx.idMap = meta.IDMap
	idx.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range idx.idMap {
		idx.keyMap[key] = id
	}
	idx.nextKey = meta.NextKey

	graphFile, err := os.Open(idx.vectorsPath)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "open vector graph", err)
	}
	defer func() { _ = graphFile.Close() }()
	if err := idx.graph.Import(bufio.NewReader(graphFile)); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "import vector graph", err)
	}
	return nil
}

// saveVectorsLocked persists the hnsw graph and its id mappings. Must be
// called with idx.mu held.
func (idx *Index) saveVectorsLocked() error {
	tmp := idx.vectorsPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "create vector graph file", err)
	}
	if err := idx.graph.Export(f); err != nil {
		_ = f.Close()
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "export vector graph", err)
	}
	if err := f.Close(); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "close vector graph file", err)
	}
	if err := os.Rename(tmp, idx.vectorsPath); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "install vector graph file", err)
	}

	metaTmp := idx.vectorsPath + ".meta.tmp"
	mf, err := os.Create(metaTmp)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "create vector metadata file", err)
	}
	meta := struct {
		IDMap   map[string]uint64
		NextKey uint64
	}{IDMap: idx.idMap, NextKey: idx.nextKey}
	if err := gob.NewEncoder(mf).Encode(meta); err != nil {
		_ = mf.Close()
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "encode vector metadata", err)
	}
	if err := mf.Close(); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "close vector metadata file", err)
	}
	return os.Rename(metaTmp, idx.vectorsPath+".meta")
}

// rowFromFields assembles a ChunkRow from a bleve Hit's stored fields
// (see rowsByIDsLocked). Numeric fields decode as float64 regardless of
// how they were indexed, hence toFloat.
func rowFromFields(id string, fields map[string]any) ChunkRow {
	row := ChunkRow{ID: id}
	if s, ok := fields["content"].(string); ok {
		row.Content = s
	}
	if s, ok := fields["parent_id"].(string); ok {
		row.ParentID = s
	}
	if s, ok := fields["parent_name"].(string); ok {
		row.ParentName = s
	}
	if s, ok := fields["collection_id"].(string); ok {
		row.CollectionID = s
	}
	row.ChunkIndex = int(toFloat(fields["chunk_index"]))
	row.PageCount = int(toFloat(fields["page_count"]))
	row.StartPage = int(toFloat(fields["start_page"]))
	row.EndPage = int(toFloat(fields["end_page"]))
	return row
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func normalize(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
