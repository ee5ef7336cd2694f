package search

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const fullTextSnapshotVersion = "1"

type fullTextSnapshot struct {
	Version string     `msgpack:"v"`
	Docs    []*textDoc `msgpack:"docs"`
}

// SaveSnapshot writes every visible document as msgpack. Postings are
// rebuilt on load.
func (f *FullTextIndex) SaveSnapshot(w io.Writer) error {
	f.mu.RLock()
	snap := fullTextSnapshot{Version: fullTextSnapshotVersion}
	for _, p := range f.partitions {
		for _, s := range p.segments() {
			for id, doc := range s.docs {
				if s.visible(id) {
					snap.Docs = append(snap.Docs, doc)
				}
			}
		}
	}
	f.mu.RUnlock()

	slices.SortFunc(snap.Docs, func(a, b *textDoc) int {
		return strings.Compare(a.NoteID, b.NoteID)
	})
	return msgpack.NewEncoder(w).Encode(&snap)
}

// LoadSnapshot replaces the index contents with a snapshot. Loaded documents
// go straight into sealed segments.
func (f *FullTextIndex) LoadSnapshot(r io.Reader) error {
	var snap fullTextSnapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode full-text snapshot: %w", err)
	}
	if snap.Version != fullTextSnapshotVersion {
		return fmt.Errorf("unsupported full-text snapshot version %q", snap.Version)
	}

	partitions := make(map[string]*partition)
	owners := make(map[string]string, len(snap.Docs))
	for _, doc := range snap.Docs {
		if doc == nil || doc.NoteID == "" || doc.UserID == "" {
			continue
		}
		if doc.Terms == nil {
			doc.Terms = map[string]float64{}
		}
		p, ok := partitions[doc.UserID]
		if !ok {
			p = newPartition()
			partitions[doc.UserID] = p
		}
		p.sealed.add(doc)
		owners[doc.NoteID] = doc.UserID
	}

	f.optimizeMu.Lock()
	defer f.optimizeMu.Unlock()
	f.mu.Lock()
	f.partitions = partitions
	f.owners = owners
	f.mu.Unlock()
	return nil
}

// SaveFile writes a snapshot to path atomically, creating parent directories.
func (f *FullTextIndex) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := f.SaveSnapshot(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFile restores a snapshot from path. A missing file leaves the index
// empty and is not an error.
func (f *FullTextIndex) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.logger.Info("No full-text snapshot found, starting empty", zap.String("path", path))
			return nil
		}
		return err
	}
	defer file.Close()
	return f.LoadSnapshot(file)
}
