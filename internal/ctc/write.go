package ctc

import (
	"fmt"
	"io"
)

// WriteTable writes tracks in lineage table format, one line per
// track.
func WriteTable(w io.Writer, tracks []Track) error {
	for _, tr := range tracks {
		if _, err := fmt.Fprintf(w, "%d %d %d %d\n", tr.ID, tr.Start, tr.End, tr.Parent); err != nil {
			return err
		}
	}
	return nil
}
