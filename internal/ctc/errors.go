package ctc

import (
	"fmt"
	"strings"
)

// MissingInputError reports that none of the candidate inputs exist
// under a dataset directory. The run aborts before any computation.
type MissingInputError struct {
	Dir        string
	Candidates []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("no input found in %s (tried %s)", e.Dir, strings.Join(e.Candidates, ", "))
}

// FormatError reports a lineage table line that does not parse as a
// track record. Text carries the offending line verbatim.
type FormatError struct {
	Path   string
	Line   int
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: malformed track line %q: %s", e.Path, e.Line, e.Text, e.Reason)
}

// DuplicateIDError reports a track id declared more than once.
type DuplicateIDError struct {
	Path string
	Line int
	ID   TrackID
}

func (e *DuplicateIDError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("duplicate track id %d", e.ID)
	}
	return fmt.Sprintf("%s:%d: duplicate track id %d", e.Path, e.Line, e.ID)
}
