// Package lineage derives parent/child structure from a lineage
// table and answers structural queries over it.
package lineage

import (
	"fmt"
	"sort"

	"github.com/banshee-data/lineage.report/internal/ctc"
	"github.com/banshee-data/lineage.report/internal/monitoring"
)

// DanglingParentError reports a track whose parent id is not declared
// in the table. Recoverable: Build treats the track as a root and
// continues, returning the condition as a warning.
type DanglingParentError struct {
	ID     ctc.TrackID
	Parent ctc.TrackID
}

func (e *DanglingParentError) Error() string {
	return fmt.Sprintf("track %d references missing parent %d", e.ID, e.Parent)
}

// Forest indexes parent/child relationships over a lineage table. It
// does not own the track records.
type Forest struct {
	table    *ctc.Table
	children map[ctc.TrackID][]ctc.TrackID
	roots    []ctc.TrackID
}

// Build constructs the forest in one pass over the table. Children
// keep the order they were encountered in. Tracks whose parent id is
// absent from the table are recovered as roots, one warning each.
func Build(table *ctc.Table) (*Forest, []*DanglingParentError) {
	f := &Forest{
		table:    table,
		children: make(map[ctc.TrackID][]ctc.TrackID),
	}

	var warnings []*DanglingParentError
	for _, tr := range table.Tracks() {
		switch {
		case tr.IsRoot():
			f.roots = append(f.roots, tr.ID)
		case !table.Has(tr.Parent):
			monitoring.Logf("lineage: track %d references missing parent %d, treating as root", tr.ID, tr.Parent)
			warnings = append(warnings, &DanglingParentError{ID: tr.ID, Parent: tr.Parent})
			f.roots = append(f.roots, tr.ID)
		default:
			f.children[tr.Parent] = append(f.children[tr.Parent], tr.ID)
		}
	}
	sort.Slice(f.roots, func(i, j int) bool { return f.roots[i] < f.roots[j] })

	return f, warnings
}

// Table returns the lineage table the forest was built from.
func (f *Forest) Table() *ctc.Table { return f.table }

// ChildrenOf returns the ids of tracks whose parent is id, in the
// order they appear in the table.
func (f *Forest) ChildrenOf(id ctc.TrackID) []ctc.TrackID {
	kids := f.children[id]
	out := make([]ctc.TrackID, len(kids))
	copy(out, kids)
	return out
}

// Roots returns the ids of tracks without a resolvable parent, in
// ascending order. Tracks recovered from a dangling parent reference
// are included.
func (f *Forest) Roots() []ctc.TrackID {
	out := make([]ctc.TrackID, len(f.roots))
	copy(out, f.roots)
	return out
}

// DivisionEvents returns the number of parents with two or more
// children. One division event produces two or more child tracks, so
// this is smaller than the child-track count exports report.
func (f *Forest) DivisionEvents() int {
	n := 0
	for _, kids := range f.children {
		if len(kids) >= 2 {
			n++
		}
	}
	return n
}

// IsDivision reports whether id is part of a division event: it has
// two or more children, or its own parent does.
func (f *Forest) IsDivision(id ctc.TrackID) bool {
	if len(f.children[id]) >= 2 {
		return true
	}
	tr, ok := f.table.Lookup(id)
	if !ok || tr.IsRoot() {
		return false
	}
	return len(f.children[tr.Parent]) >= 2
}
