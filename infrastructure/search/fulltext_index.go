package search

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/services"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"go.uber.org/zap"
)

// partition is one user's slice of the index.
type partition struct {
	sealed *segment
	frozen *segment
	live   *segment
}

func newPartition() *partition {
	return &partition{sealed: newSegment(), live: newSegment()}
}

func (p *partition) segments() []*segment {
	if p.frozen != nil {
		return []*segment{p.sealed, p.frozen, p.live}
	}
	return []*segment{p.sealed, p.live}
}

// IndexStats summarizes the index for logging and metrics.
type IndexStats struct {
	Users      int
	Documents  int
	LiveDocs   int
	Tombstones int
}

// FullTextIndex is an in-memory BM25 index partitioned by user.
//
// Writes land in a per-user live segment. Optimize freezes the live segment,
// merges it with the sealed segment outside the lock and swaps the result in
// under a short write lock, so searches never wait on a merge and always see
// a consistent state.
type FullTextIndex struct {
	mu         sync.RWMutex
	partitions map[string]*partition
	owners     map[string]string

	optimizeMu sync.Mutex
	// beforeSwap runs after a merge and before it is published.
	beforeSwap func()

	analyzer services.TextAnalyzer
	rules    config.SearchRules
	logger   *zap.Logger
}

var _ ports.FullTextIndex = (*FullTextIndex)(nil)

// NewFullTextIndex creates an empty index.
func NewFullTextIndex(analyzer services.TextAnalyzer, rules config.SearchRules, logger *zap.Logger) *FullTextIndex {
	return &FullTextIndex{
		partitions: make(map[string]*partition),
		owners:     make(map[string]string),
		analyzer:   analyzer,
		rules:      rules,
		logger:     logger,
	}
}

// Index adds a document, replacing any previous version of it.
func (f *FullTextIndex) Index(ctx context.Context, doc ports.TextDocument) error {
	if doc.NoteID == "" || doc.UserID == "" {
		return pkgerrors.NewValidationError("document requires note id and user id")
	}
	entry := f.analyze(doc)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(doc.NoteID)
	p, ok := f.partitions[doc.UserID]
	if !ok {
		p = newPartition()
		f.partitions[doc.UserID] = p
	}
	p.live.add(entry)
	f.owners[doc.NoteID] = doc.UserID
	return nil
}

// Reindex replaces a document. It is Index under another name so callers
// can state intent.
func (f *FullTextIndex) Reindex(ctx context.Context, doc ports.TextDocument) error {
	return f.Index(ctx, doc)
}

// Remove deletes a note's postings. Removing an unknown note is a no-op.
func (f *FullTextIndex) Remove(ctx context.Context, noteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(noteID)
	return nil
}

func (f *FullTextIndex) removeLocked(noteID string) {
	userID, ok := f.owners[noteID]
	if !ok {
		return
	}
	delete(f.owners, noteID)
	p := f.partitions[userID]
	if p == nil {
		return
	}
	if p.live.drop(noteID) {
		return
	}
	if p.frozen != nil && p.frozen.mask(noteID) {
		return
	}
	p.sealed.mask(noteID)
}

// analyze computes tf' = titleBoost·tf_title + tagBoost·tf_tags + tf_content
// and the matching weighted document length.
func (f *FullTextIndex) analyze(doc ports.TextDocument) *textDoc {
	terms := make(map[string]float64)
	var length float64
	addField := func(text string, boost float64) {
		for _, tok := range f.analyzer.Tokenize(text) {
			terms[tok] += boost
			length += boost
		}
	}
	addField(doc.Title, f.rules.TitleBoost)
	for _, tag := range doc.Tags {
		addField(tag, f.rules.TagBoost)
	}
	addField(doc.Content, 1)

	return &textDoc{
		NoteID:      doc.NoteID,
		UserID:      doc.UserID,
		DirectoryID: doc.DirectoryID,
		Tags:        entities.NormalizeTags(doc.Tags),
		UpdatedAt:   doc.UpdatedAt,
		Length:      length,
		Terms:       terms,
	}
}

// Search scores the user's documents with BM25. Statistics (N, df, average
// length) cover all of the user's documents; filters only restrict which
// documents are returned.
func (f *FullTextIndex) Search(ctx context.Context, q ports.TextQuery) ([]ports.ScoredNote, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	terms := f.analyzer.Terms(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.partitions[q.UserID]
	if !ok {
		return nil, nil
	}
	segs := p.segments()

	var n int
	var totalLen float64
	for _, s := range segs {
		for id, doc := range s.docs {
			if _, masked := s.deleted[id]; masked {
				continue
			}
			n++
			totalLen += doc.Length
		}
	}
	if n == 0 {
		return nil, nil
	}
	avgLen := totalLen / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	k1, b := f.rules.BM25K1, f.rules.BM25B
	scores := make(map[string]float64)
	docs := make(map[string]*textDoc)
	for _, term := range terms {
		type hit struct {
			doc *textDoc
			tf  float64
		}
		var hits []hit
		for _, s := range segs {
			for id, tf := range s.postings[term] {
				if _, masked := s.deleted[id]; masked {
					continue
				}
				hits = append(hits, hit{doc: s.docs[id], tf: tf})
			}
		}
		if len(hits) == 0 {
			continue
		}
		df := float64(len(hits))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for _, h := range hits {
			if !matchesFilter(h.doc, q.Filter) {
				continue
			}
			norm := h.tf + k1*(1-b+b*h.doc.Length/avgLen)
			scores[h.doc.NoteID] += idf * h.tf * (k1 + 1) / norm
			docs[h.doc.NoteID] = h.doc
		}
	}

	results := make([]ports.ScoredNote, 0, len(scores))
	for id, score := range scores {
		results = append(results, ports.ScoredNote{NoteID: id, Score: score, UpdatedAt: docs[id].UpdatedAt})
	}
	slices.SortFunc(results, func(a, b ports.ScoredNote) int {
		return services.CompareRanked(a.Score, b.Score, a.UpdatedAt, b.UpdatedAt, a.NoteID, b.NoteID)
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func matchesFilter(doc *textDoc, filter ports.SearchFilter) bool {
	if filter.DirectoryID != "" && doc.DirectoryID != filter.DirectoryID {
		return false
	}
	for _, t := range entities.NormalizeTags(filter.Tags) {
		if _, found := slices.BinarySearch(doc.Tags, t); !found {
			return false
		}
	}
	return true
}

// Optimize compacts every partition. Concurrent calls are serialized.
func (f *FullTextIndex) Optimize(ctx context.Context) error {
	f.optimizeMu.Lock()
	defer f.optimizeMu.Unlock()

	f.mu.RLock()
	users := make([]string, 0, len(f.partitions))
	for userID := range f.partitions {
		users = append(users, userID)
	}
	f.mu.RUnlock()
	slices.Sort(users)

	merged := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.optimizePartition(userID) {
			merged++
		}
	}
	f.logger.Debug("Full-text index optimized",
		zap.Int("partitions", len(users)),
		zap.Int("merged", merged))
	return nil
}

// optimizePartition runs freeze, merge and swap for one user.
func (f *FullTextIndex) optimizePartition(userID string) bool {
	// Freeze: the live segment stops taking writes.
	f.mu.Lock()
	p, ok := f.partitions[userID]
	if !ok || (p.live.liveCount() == 0 && len(p.sealed.deleted) == 0) {
		f.mu.Unlock()
		return false
	}
	p.frozen = p.live
	p.live = newSegment()
	sealed, frozen := p.sealed, p.frozen
	masks := []map[string]struct{}{cloneMask(sealed.deleted), cloneMask(frozen.deleted)}
	f.mu.Unlock()

	// Merge without holding the lock. Inputs are immutable apart from their
	// masks, which were copied above.
	next := mergeSegments([]*segment{sealed, frozen}, masks)

	if f.beforeSwap != nil {
		f.beforeSwap()
	}

	// Swap: carry over deletions that happened during the merge.
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range []*segment{sealed, frozen} {
		for id := range s.deleted {
			if _, ok := next.docs[id]; ok {
				next.deleted[id] = struct{}{}
			}
		}
	}
	p.sealed = next
	p.frozen = nil
	if next.liveCount() == 0 && p.live.liveCount() == 0 {
		delete(f.partitions, userID)
	}
	return true
}

// Stats returns document and tombstone counts.
func (f *FullTextIndex) Stats() IndexStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := IndexStats{Users: len(f.partitions)}
	for _, p := range f.partitions {
		for _, s := range p.segments() {
			stats.Documents += len(s.docs)
			stats.LiveDocs += s.liveCount()
			stats.Tombstones += len(s.deleted)
		}
	}
	return stats
}
