package ctc

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/lineage.report/internal/fsutil"
)

const (
	// ResultTableName is the tracker-produced lineage table filename.
	ResultTableName = "res_track.txt"

	// ManualTableName is the curated fallback lineage table filename.
	ManualTableName = "man_track.txt"
)

// DefaultCandidates returns the lineage table filenames probed, in
// order, when resolving a dataset directory.
func DefaultCandidates() []string {
	return []string{ResultTableName, ManualTableName}
}

// ResolveTable probes dir for each candidate filename in order and
// parses the first one that exists. It returns the parsed table and
// the path it was loaded from. An empty candidate list falls back to
// DefaultCandidates. If no candidate exists the result is a
// MissingInputError.
func ResolveTable(fsys fsutil.FileSystem, dir string, candidates []string) (*Table, string, error) {
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if !fsys.Exists(path) {
			continue
		}

		f, err := fsys.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", path, err)
		}
		t, perr := ParseTable(f, path)
		f.Close()
		if perr != nil {
			return nil, "", perr
		}
		return t, path, nil
	}

	return nil, "", &MissingInputError{Dir: dir, Candidates: candidates}
}
