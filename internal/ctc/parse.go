package ctc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseTable reads a lineage table from r. path is used only for
// error context. Lines must tokenize into exactly four integers;
// blank lines are tolerated. Input order is preserved.
func ParseTable(r io.Reader, path string) (*Table, error) {
	t := &Table{byID: make(map[TrackID]int)}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		tr, reason := parseTrack(fields)
		if reason != "" {
			return nil, &FormatError{Path: path, Line: line, Text: text, Reason: reason}
		}
		if _, ok := t.byID[tr.ID]; ok {
			return nil, &DuplicateIDError{Path: path, Line: line, ID: tr.ID}
		}
		t.byID[tr.ID] = len(t.tracks)
		t.tracks = append(t.tracks, tr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return t, nil
}

// parseTrack converts one tokenized line into a Track. The returned
// reason is empty on success.
func parseTrack(fields []string) (Track, string) {
	if len(fields) != 4 {
		return Track{}, fmt.Sprintf("expected 4 integer fields, got %d", len(fields))
	}

	vals := make([]int, 4)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Track{}, fmt.Sprintf("field %d %q is not an integer", i+1, f)
		}
		vals[i] = v
	}

	tr := Track{
		ID:     TrackID(vals[0]),
		Start:  vals[1],
		End:    vals[2],
		Parent: TrackID(vals[3]),
	}
	switch {
	case tr.ID < 1:
		return Track{}, "track id must be positive"
	case tr.Start < 0:
		return Track{}, "start frame must be non-negative"
	case tr.End < tr.Start:
		return Track{}, "end frame precedes start frame"
	case tr.Parent < 0:
		return Track{}, "parent id must be non-negative"
	}

	return tr, ""
}
