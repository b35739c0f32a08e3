// Package index holds chunk embeddings in memory and answers nearest-neighbour queries.
//
// Readers work on an immutable snapshot loaded through an atomic pointer. Writers are
// serialized and publish a fresh snapshot, so a search sees either the state before
// a write or after it, never a partial one.
package index

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/futig/docchat-backend/internal/entity"
)

// Hit is one search result.
type Hit struct {
	ChunkID    string
	DocumentID string
	Score      float32
}

type record struct {
	chunkID    string
	documentID string
	model      string
	vector     []float32
	norm       float64
}

type snapshot struct {
	records []record // insertion order
	byChunk map[string]int
	models  map[string]int
	dim     int
}

var emptySnapshot = &snapshot{
	byChunk: map[string]int{},
	models:  map[string]int{},
}

// Index is an in-memory embedding index. The zero value is not usable, use New.
type Index struct {
	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// New returns an empty index.
func New() *Index {
	idx := &Index{}
	idx.current.Store(emptySnapshot)
	return idx
}

// Upsert inserts or replaces embeddings. A replaced entry keeps its original position.
func (idx *Index) Upsert(embeddings ...entity.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	old := idx.current.Load()
	next := old.clone(len(embeddings))

	for _, e := range embeddings {
		if err := next.put(e); err != nil {
			return err
		}
	}

	idx.current.Store(next)
	return nil
}

// Remove deletes the given chunks and returns how many were present.
func (idx *Index) Remove(chunkIDs ...string) int {
	if len(chunkIDs) == 0 {
		return 0
	}

	drop := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		drop[id] = struct{}{}
	}

	return idx.removeWhere(func(r *record) bool {
		_, ok := drop[r.chunkID]
		return ok
	})
}

// RemoveDocument deletes every chunk of a document and returns how many were present.
func (idx *Index) RemoveDocument(documentID string) int {
	return idx.removeWhere(func(r *record) bool {
		return r.documentID == documentID
	})
}

func (idx *Index) removeWhere(match func(*record) bool) int {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	old := idx.current.Load()

	kept := make([]entity.Embedding, 0, len(old.records))
	removed := 0
	for i := range old.records {
		if match(&old.records[i]) {
			removed++
			continue
		}
		kept = append(kept, old.records[i].embedding())
	}

	if removed == 0 {
		return 0
	}

	next := newSnapshot(len(kept))
	for _, e := range kept {
		// Vectors were validated on insert.
		_ = next.put(e)
	}
	idx.current.Store(next)

	return removed
}

// Rebuild replaces the whole index with embeddings. The new snapshot is fully built
// before it becomes visible; on error the previous index stays in place.
// Readers keep using the previous snapshot while the new one is built.
func (idx *Index) Rebuild(embeddings []entity.Embedding) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	next := newSnapshot(len(embeddings))
	for _, e := range embeddings {
		if err := next.put(e); err != nil {
			return err
		}
	}

	idx.current.Store(next)
	return nil
}

// Reset empties the index.
func (idx *Index) Reset() {
	idx.writeMu.Lock()
	idx.current.Store(emptySnapshot)
	idx.writeMu.Unlock()
}

// Search returns the k entries most similar to query by cosine similarity, best first.
// Equal scores keep insertion order. model must match the tag of every stored vector.
func (idx *Index) Search(ctx context.Context, query []float32, k int, model string) ([]Hit, error) {
	snap := idx.current.Load()
	if len(snap.records) == 0 {
		return nil, entity.ErrNoDocumentsIndexed
	}

	if err := snap.checkModel(model, len(query)); err != nil {
		return nil, err
	}

	if k <= 0 {
		return []Hit{}, nil
	}

	qnorm := norm(query)
	hits := make([]Hit, 0, len(snap.records))
	for i := range snap.records {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r := &snap.records[i]
		hits = append(hits, Hit{
			ChunkID:    r.chunkID,
			DocumentID: r.documentID,
			Score:      cosine(query, qnorm, r.vector, r.norm),
		})
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// IsAvailable reports whether the index holds at least one vector.
func (idx *Index) IsAvailable() bool {
	return len(idx.current.Load().records) > 0
}

// Size returns the number of stored vectors.
func (idx *Index) Size() int {
	return len(idx.current.Load().records)
}

// Contains reports whether chunkID is indexed.
func (idx *Index) Contains(chunkID string) bool {
	_, ok := idx.current.Load().byChunk[chunkID]
	return ok
}

// Models returns the distinct model tags currently stored.
func (idx *Index) Models() []string {
	snap := idx.current.Load()
	models := make([]string, 0, len(snap.models))
	for m := range snap.models {
		models = append(models, m)
	}
	slices.Sort(models)
	return models
}

// Entries returns a copy of every stored embedding in insertion order.
func (idx *Index) Entries() []entity.Embedding {
	snap := idx.current.Load()
	out := make([]entity.Embedding, len(snap.records))
	for i := range snap.records {
		e := snap.records[i].embedding()
		e.Vector = slices.Clone(e.Vector)
		out[i] = e
	}
	return out
}

func newSnapshot(capacity int) *snapshot {
	return &snapshot{
		records: make([]record, 0, capacity),
		byChunk: make(map[string]int, capacity),
		models:  map[string]int{},
	}
}

func (s *snapshot) clone(extra int) *snapshot {
	next := &snapshot{
		records: make([]record, len(s.records), len(s.records)+extra),
		byChunk: make(map[string]int, len(s.byChunk)+extra),
		models:  make(map[string]int, len(s.models)),
		dim:     s.dim,
	}
	copy(next.records, s.records)
	for k, v := range s.byChunk {
		next.byChunk[k] = v
	}
	for k, v := range s.models {
		next.models[k] = v
	}
	return next
}

// put adds or replaces e. Records are never mutated in place, so older snapshots stay intact.
func (s *snapshot) put(e entity.Embedding) error {
	if e.ChunkID == "" {
		return fmt.Errorf("%w: empty chunk id", entity.ErrInvalidParameter)
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: empty vector for chunk %s", entity.ErrInvalidParameter, e.ChunkID)
	}
	if s.dim != 0 && len(e.Vector) != s.dim && !s.onlyHolds(e.ChunkID) {
		return fmt.Errorf("%w: vector for chunk %s has dimension %d, index has %d",
			entity.ErrEmbeddingModelMismatch, e.ChunkID, len(e.Vector), s.dim)
	}

	r := record{
		chunkID:    e.ChunkID,
		documentID: e.DocumentID,
		model:      e.Model,
		vector:     slices.Clone(e.Vector),
		norm:       norm(e.Vector),
	}

	if pos, ok := s.byChunk[e.ChunkID]; ok {
		s.dropModel(s.records[pos].model)
		s.records[pos] = r
	} else {
		s.byChunk[e.ChunkID] = len(s.records)
		s.records = append(s.records, r)
	}
	s.models[e.Model]++
	s.dim = len(e.Vector)

	return nil
}

func (s *snapshot) onlyHolds(chunkID string) bool {
	_, ok := s.byChunk[chunkID]
	return ok && len(s.records) == 1
}

func (s *snapshot) dropModel(model string) {
	s.models[model]--
	if s.models[model] <= 0 {
		delete(s.models, model)
	}
}

func (s *snapshot) checkModel(model string, dim int) error {
	for m := range s.models {
		if m != model {
			return fmt.Errorf("%w: index built with %q, query embedded with %q", entity.ErrEmbeddingModelMismatch, m, model)
		}
	}
	if dim != s.dim {
		return fmt.Errorf("%w: query has dimension %d, index has %d", entity.ErrEmbeddingModelMismatch, dim, s.dim)
	}
	return nil
}

func (r *record) embedding() entity.Embedding {
	return entity.Embedding{
		ChunkID:    r.chunkID,
		DocumentID: r.documentID,
		Model:      r.model,
		Vector:     r.vector,
	}
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, anorm float64, b []float32, bnorm float64) float32 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (anorm * bnorm))
}
