// Package ctc reads and writes Cell Tracking Challenge lineage
// tables. A table holds one line per track, four whitespace-separated
// integers: track id, first frame, last frame, parent id. Parent id 0
// marks a track that began without a parent.
package ctc

import "sort"

// TrackID identifies one tracked object across the frames of a
// sequence. Mask pixels carry the same integer values, so the
// dedicated type keeps track identity distinct from raw pixel data.
type TrackID int

// RootParent is the parent id of a track with no parent.
const RootParent TrackID = 0

// Track is one lineage table row: the declared lifespan of a tracked
// object and its parent link.
type Track struct {
	ID     TrackID
	Start  int // first declared frame, inclusive
	End    int // last declared frame, inclusive
	Parent TrackID
}

// Span returns the declared lifespan in frames.
func (t Track) Span() int { return t.End - t.Start + 1 }

// IsRoot reports whether the track began without a parent.
func (t Track) IsRoot() bool { return t.Parent == RootParent }

// Table is a parsed lineage table. Tracks keep their input order;
// lookups by id are indexed.
type Table struct {
	tracks []Track
	byID   map[TrackID]int
}

// NewTable builds a table from rows, rejecting duplicate track ids.
func NewTable(tracks []Track) (*Table, error) {
	t := &Table{
		tracks: make([]Track, 0, len(tracks)),
		byID:   make(map[TrackID]int, len(tracks)),
	}
	for _, tr := range tracks {
		if _, ok := t.byID[tr.ID]; ok {
			return nil, &DuplicateIDError{ID: tr.ID}
		}
		t.byID[tr.ID] = len(t.tracks)
		t.tracks = append(t.tracks, tr)
	}
	return t, nil
}

// Len returns the number of tracks.
func (t *Table) Len() int { return len(t.tracks) }

// Lookup returns the track with the given id, if present.
func (t *Table) Lookup(id TrackID) (Track, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Track{}, false
	}
	return t.tracks[i], true
}

// Has reports whether id is declared in the table.
func (t *Table) Has(id TrackID) bool {
	_, ok := t.byID[id]
	return ok
}

// Tracks returns a copy of all tracks in input order.
func (t *Table) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	copy(out, t.tracks)
	return out
}

// IDs returns all declared track ids in ascending order.
func (t *Table) IDs() []TrackID {
	ids := make([]TrackID, 0, len(t.tracks))
	for _, tr := range t.tracks {
		ids = append(ids, tr.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
