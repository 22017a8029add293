package ctc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseTable tests lineage table parsing.
func TestParseTable(t *testing.T) {
	t.Parallel()

	t.Run("parses tracks preserving input order", func(t *testing.T) {
		t.Parallel()
		in := "2 5 9 1\n1 0 4 0\n3 5 9 1\n"

		tbl, err := ParseTable(strings.NewReader(in), "res_track.txt")
		require.NoError(t, err)
		require.Equal(t, 3, tbl.Len())

		want := []Track{
			{ID: 2, Start: 5, End: 9, Parent: 1},
			{ID: 1, Start: 0, End: 4, Parent: 0},
			{ID: 3, Start: 5, End: 9, Parent: 1},
		}
		if diff := cmp.Diff(want, tbl.Tracks()); diff != "" {
			t.Errorf("tracks mismatch (-want +got):\n%s", diff)
		}

		assert.Equal(t, []TrackID{1, 2, 3}, tbl.IDs())
	})

	t.Run("tolerates blank lines and extra whitespace", func(t *testing.T) {
		t.Parallel()
		in := "\n1 0 4 0\n\n  2\t5  9\t1  \n\n"

		tbl, err := ParseTable(strings.NewReader(in), "res_track.txt")
		require.NoError(t, err)
		assert.Equal(t, 2, tbl.Len())

		tr, ok := tbl.Lookup(2)
		require.True(t, ok)
		assert.Equal(t, Track{ID: 2, Start: 5, End: 9, Parent: 1}, tr)
	})

	t.Run("empty input yields empty table", func(t *testing.T) {
		t.Parallel()
		tbl, err := ParseTable(strings.NewReader(""), "res_track.txt")
		require.NoError(t, err)
		assert.Equal(t, 0, tbl.Len())
		assert.Empty(t, tbl.IDs())
	})

	t.Run("rejects malformed lines", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			name string
			in   string
		}{
			{"three fields", "1 0 4\n"},
			{"five fields", "1 0 4 0 9\n"},
			{"non-integer id", "a 0 4 0\n"},
			{"non-integer frame", "1 0 4.5 0\n"},
			{"zero id", "0 0 4 0\n"},
			{"negative start", "1 -1 4 0\n"},
			{"end before start", "1 5 4 0\n"},
			{"negative parent", "1 0 4 -2\n"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				_, err := ParseTable(strings.NewReader(tc.in), "res_track.txt")
				var ferr *FormatError
				require.ErrorAs(t, err, &ferr, "input %q", tc.in)
				assert.Equal(t, "res_track.txt", ferr.Path)
				assert.Equal(t, 1, ferr.Line)
			})
		}
	})

	t.Run("format error carries offending line", func(t *testing.T) {
		t.Parallel()
		in := "1 0 4 0\n2 x 9 1\n"

		_, err := ParseTable(strings.NewReader(in), "man_track.txt")
		var ferr *FormatError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, 2, ferr.Line)
		assert.Equal(t, "2 x 9 1", ferr.Text)
		assert.Contains(t, err.Error(), "man_track.txt:2")
		assert.Contains(t, err.Error(), `"2 x 9 1"`)
	})

	t.Run("rejects duplicate track ids", func(t *testing.T) {
		t.Parallel()
		in := "1 0 4 0\n2 5 9 1\n1 5 9 0\n"

		_, err := ParseTable(strings.NewReader(in), "res_track.txt")
		var derr *DuplicateIDError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, TrackID(1), derr.ID)
		assert.Equal(t, 3, derr.Line)
	})
}

// TestWriteTable tests lineage table serialization.
func TestWriteTable(t *testing.T) {
	t.Parallel()

	tracks := []Track{
		{ID: 1, Start: 0, End: 4, Parent: 0},
		{ID: 2, Start: 5, End: 9, Parent: 1},
		{ID: 3, Start: 5, End: 9, Parent: 1},
	}

	var buf strings.Builder
	require.NoError(t, WriteTable(&buf, tracks))
	assert.Equal(t, "1 0 4 0\n2 5 9 1\n3 5 9 1\n", buf.String())

	tbl, err := ParseTable(strings.NewReader(buf.String()), "res_track.txt")
	require.NoError(t, err)
	if diff := cmp.Diff(tracks, tbl.Tracks()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
