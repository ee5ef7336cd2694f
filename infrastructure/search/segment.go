package search

import (
	"maps"
	"time"
)

// textDoc is one indexed note with its field-weighted term frequencies.
type textDoc struct {
	NoteID      string             `msgpack:"id"`
	UserID      string             `msgpack:"user"`
	DirectoryID string             `msgpack:"dir,omitempty"`
	Tags        []string           `msgpack:"tags,omitempty"`
	UpdatedAt   time.Time          `msgpack:"updated"`
	Length      float64            `msgpack:"len"`
	Terms       map[string]float64 `msgpack:"terms"`
}

// segment is a set of documents with their postings. Sealed and frozen
// segments never change their docs or postings; deletions against them are
// recorded in the deleted mask. Only the live segment is mutated in place.
type segment struct {
	docs     map[string]*textDoc
	postings map[string]map[string]float64
	deleted  map[string]struct{}
}

func newSegment() *segment {
	return &segment{
		docs:     make(map[string]*textDoc),
		postings: make(map[string]map[string]float64),
		deleted:  make(map[string]struct{}),
	}
}

func (s *segment) add(doc *textDoc) {
	s.docs[doc.NoteID] = doc
	for term, tf := range doc.Terms {
		list, ok := s.postings[term]
		if !ok {
			list = make(map[string]float64)
			s.postings[term] = list
		}
		list[doc.NoteID] = tf
	}
}

// drop removes a document from a mutable segment.
func (s *segment) drop(noteID string) bool {
	doc, ok := s.docs[noteID]
	if !ok {
		return false
	}
	for term := range doc.Terms {
		if list, ok := s.postings[term]; ok {
			delete(list, noteID)
			if len(list) == 0 {
				delete(s.postings, term)
			}
		}
	}
	delete(s.docs, noteID)
	return true
}

// visible reports whether the segment serves noteID.
func (s *segment) visible(noteID string) bool {
	if _, ok := s.docs[noteID]; !ok {
		return false
	}
	_, masked := s.deleted[noteID]
	return !masked
}

func (s *segment) mask(noteID string) bool {
	if !s.visible(noteID) {
		return false
	}
	s.deleted[noteID] = struct{}{}
	return true
}

func (s *segment) liveCount() int {
	return len(s.docs) - len(s.deleted)
}

// mergeSegments builds a fresh segment from the visible docs of the inputs.
// masks are the deletion masks captured when the inputs were frozen.
func mergeSegments(inputs []*segment, masks []map[string]struct{}) *segment {
	merged := newSegment()
	for i, in := range inputs {
		if in == nil {
			continue
		}
		for id, doc := range in.docs {
			if _, masked := masks[i][id]; masked {
				continue
			}
			merged.add(doc)
		}
	}
	return merged
}

func cloneMask(m map[string]struct{}) map[string]struct{} {
	if m == nil {
		return map[string]struct{}{}
	}
	return maps.Clone(m)
}
