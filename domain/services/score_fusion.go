package services

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// RankedCandidate is one entry of a single-engine ranking.
type RankedCandidate struct {
	NoteID    string
	Score     float64
	UpdatedAt time.Time
}

// FusedCandidate is a note after hybrid fusion. The per-engine scores are
// already min-max normalized.
type FusedCandidate struct {
	NoteID        string
	Score         float64
	FullTextScore float64
	SemanticScore float64
	InFullText    bool
	InSemantic    bool
	UpdatedAt     time.Time
}

// FusionWeights weigh the two engines in the fused score.
type FusionWeights struct {
	FullText float64
	Semantic float64
}

// MinMaxNormalize scales scores into [0,1]. A ranking whose scores are all
// equal maps every entry to 1.
func MinMaxNormalize(candidates []RankedCandidate) map[string]float64 {
	normalized := make(map[string]float64, len(candidates))
	if len(candidates) == 0 {
		return normalized
	}
	lo, hi := candidates[0].Score, candidates[0].Score
	for _, c := range candidates[1:] {
		lo = min(lo, c.Score)
		hi = max(hi, c.Score)
	}
	for _, c := range candidates {
		if hi == lo {
			normalized[c.NoteID] = 1
			continue
		}
		normalized[c.NoteID] = (c.Score - lo) / (hi - lo)
	}
	return normalized
}

// FuseScores combines a full-text and a semantic ranking by weighted sum of
// normalized scores. A note missing from one ranking scores 0 there. The
// result is sorted by CompareRanked.
func FuseScores(fullText, semantic []RankedCandidate, w FusionWeights) []FusedCandidate {
	ftNorm := MinMaxNormalize(fullText)
	semNorm := MinMaxNormalize(semantic)

	byID := make(map[string]*FusedCandidate, len(fullText)+len(semantic))
	get := func(c RankedCandidate) *FusedCandidate {
		fc, ok := byID[c.NoteID]
		if !ok {
			fc = &FusedCandidate{NoteID: c.NoteID, UpdatedAt: c.UpdatedAt}
			byID[c.NoteID] = fc
		}
		if c.UpdatedAt.After(fc.UpdatedAt) {
			fc.UpdatedAt = c.UpdatedAt
		}
		return fc
	}
	for _, c := range fullText {
		fc := get(c)
		fc.InFullText = true
		fc.FullTextScore = ftNorm[c.NoteID]
	}
	for _, c := range semantic {
		fc := get(c)
		fc.InSemantic = true
		fc.SemanticScore = semNorm[c.NoteID]
	}

	fused := make([]FusedCandidate, 0, len(byID))
	for _, fc := range byID {
		fc.Score = w.FullText*fc.FullTextScore + w.Semantic*fc.SemanticScore
		fused = append(fused, *fc)
	}
	slices.SortFunc(fused, func(a, b FusedCandidate) int {
		return CompareRanked(a.Score, b.Score, a.UpdatedAt, b.UpdatedAt, a.NoteID, b.NoteID)
	})
	return fused
}

// SortRanked orders a single-engine ranking in place.
func SortRanked(candidates []RankedCandidate) {
	slices.SortFunc(candidates, func(a, b RankedCandidate) int {
		return CompareRanked(a.Score, b.Score, a.UpdatedAt, b.UpdatedAt, a.NoteID, b.NoteID)
	})
}

// CompareRanked is the result order: score desc, most recent update first,
// then note id for a total order.
func CompareRanked(aScore, bScore float64, aUpdated, bUpdated time.Time, aID, bID string) int {
	if c := cmp.Compare(bScore, aScore); c != 0 {
		return c
	}
	if c := bUpdated.Compare(aUpdated); c != 0 {
		return c
	}
	return strings.Compare(aID, bID)
}
