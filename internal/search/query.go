package search

import (
	"sort"

	"github.com/blevesearch/bleve/v2"
)

// QueryRequest is the hybrid query contract. Query and
// CollectionIDs are the only required fields for a BM25-only query;
// QueryVector is required whenever SemanticRatio > 0.
type QueryRequest struct {
	Query         string
	Limit         int
	Offset        int
	CollectionIDs []string
	QueryVector   []float32
	SemanticRatio float64
	MinScore      float64
}

// Hit is one ranked row together with its blended global score.
type Hit struct {
	ChunkRow
	Score float64
}

// QueryResult is the paginated hybrid query response.
type QueryResult struct {
	Hits      []Hit
	TotalHits int
}

// candidateMultiplier controls how many candidates each half of the
// index contributes before filtering/pagination narrows them down to
// Limit, so a caller's min_score/collection filter doesn't starve the
// final page of results that rank outside the raw top-Limit of either
// half alone.
const candidateMultiplier = 4

// minCandidates is the floor on how many rows each half fetches even
// when limit+offset is small, so low-ranked-but-relevant rows in the
// other half still have a chance to contribute to the union.
const minCandidates = 50

// Query runs the hybrid BM25+vector search described by QueryRequest.
func (idx *Index) Query(req QueryRequest) (QueryResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	candidateLimit := (req.Offset + req.Limit) * candidateMultiplier
	if candidateLimit < minCandidates {
		candidateLimit = minCandidates
	}

	rows := make(map[string]ChunkRow)
	bm25Scores := make(map[string]float64)
	var bm25Max float64

	if req.SemanticRatio < 1 {
		hits, err := idx.bm25CandidatesLocked(req, candidateLimit)
		if err != nil {
			return QueryResult{}, err
		}
		for id, hit := range hits {
			rows[id] = hit.row
			bm25Scores[id] = hit.score
			if hit.score > bm25Max {
				bm25Max = hit.score
			}
		}
	}

	vecScores := make(map[string]float64)
	if req.SemanticRatio > 0 && len(req.QueryVector) > 0 {
		ids, scores, err := idx.vectorCandidatesLocked(req.QueryVector, candidateLimit)
		if err != nil {
			return QueryResult{}, err
		}
		missing := make([]string, 0, len(ids))
		for i, id := range ids {
			vecScores[id] = scores[i]
			if _, ok := rows[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			fetched, err := idx.rowsByIDsLocked(missing)
			if err != nil {
				return QueryResult{}, err
			}
			for id, row := range fetched {
				rows[id] = row
			}
		}
	}

	allowed := collectionFilterSet(req.CollectionIDs)

	type scoredID struct {
		id    string
		score float64
	}
	candidates := make([]scoredID, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for id := range bm25Scores {
		seen[id] = struct{}{}
	}
	for id := range vecScores {
		seen[id] = struct{}{}
	}
	for id := range seen {
		row, ok := rows[id]
		if !ok {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[row.CollectionID]; !ok {
				continue
			}
		}

		var bm25n float64
		if bm25Max > 0 {
			bm25n = bm25Scores[id] / bm25Max
		}
		vecn := clamp01(vecScores[id])

		var global float64
		switch {
		case req.SemanticRatio <= 0:
			global = bm25n
		case req.SemanticRatio >= 1:
			global = vecn
		default:
			global = (1-req.SemanticRatio)*bm25n + req.SemanticRatio*vecn
		}
		if global < req.MinScore {
			continue
		}
		candidates = append(candidates, scoredID{id: id, score: global})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	result := QueryResult{TotalHits: len(candidates)}
	start := req.Offset
	if start > len(candidates) {
		start = len(candidates)
	}
	end := start + req.Limit
	if end > len(candidates) {
		end = len(candidates)
	}
	for _, c := range candidates[start:end] {
		result.Hits = append(result.Hits, Hit{ChunkRow: rows[c.id], Score: c.score})
	}
	return result, nil
}

type bm25Hit struct {
	row   ChunkRow
	score float64
}

func (idx *Index) bm25CandidatesLocked(req QueryRequest, limit int) (map[string]bm25Hit, error) {
	mq := bleve.NewMatchQuery(req.Query)
	mq.SetField("content")

	var q bleve.Query = mq
	if len(req.CollectionIDs) > 0 {
		filter := bleve.NewDisjunctionQuery()
		for _, id := range req.CollectionIDs {
			tq := bleve.NewTermQuery(id)
			tq.SetField("collection_id")
			filter.AddQuery(tq)
		}
		q = bleve.NewConjunctionQuery(mq, filter)
	}

	searchReq := bleve.NewSearchRequestOptions(q, limit, 0, false)
	searchReq.Fields = []string{"*"}
	res, err := idx.bleveIndex.Search(searchReq)
	if err != nil {
		return nil, err
	}

	hits := make(map[string]bm25Hit, len(res.Hits))
	for _, h := range res.Hits {
		hits[h.ID] = bm25Hit{row: rowFromFields(h.ID, h.Fields), score: h.Score}
	}
	return hits, nil
}

func (idx *Index) vectorCandidatesLocked(queryVector []float32, limit int) ([]string, []float64, error) {
	if idx.graph.Len() == 0 {
		return nil, nil, nil
	}
	vec := make([]float32, len(queryVector))
	copy(vec, queryVector)
	normalize(vec)

	nodes := idx.graph.Search(vec, limit)
	ids := make([]string, 0, len(nodes))
	scores := make([]float64, 0, len(nodes))
	for _, node := range nodes {
		id, ok := idx.keyMap[node.Key]
		if !ok {
			// Lazily deleted: present in the graph but no longer in keyMap.
			continue
		}
		distance := idx.graph.Distance(vec, node.Value)
		ids = append(ids, id)
		scores = append(scores, 1.0-float64(distance)/2.0)
	}
	return ids, scores, nil
}

func collectionFilterSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
