package stats

import (
	"fmt"
	"strings"
)

const reportFenceWidth = 50

// RenderReport formats the statistics as the evaluation report. The
// layout and labels are fixed; downstream tooling parses them.
func RenderReport(s *TrackingStats) string {
	fence := strings.Repeat("=", reportFenceWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", fence)
	fmt.Fprintf(&b, "TRACKING EVALUATION (No Ground Truth)\n")
	fmt.Fprintf(&b, "%s\n", fence)
	fmt.Fprintf(&b, "\nBasic Statistics:\n")
	fmt.Fprintf(&b, "  - Number of frames: %d\n", s.FrameCount)
	fmt.Fprintf(&b, "  - Total unique track IDs: %d\n", s.TrackCount)
	fmt.Fprintf(&b, "\nTrack Length Statistics:\n")
	fmt.Fprintf(&b, "  - Average track length: %.1f frames\n", s.MeanTrackLength)
	fmt.Fprintf(&b, "  - Median track length: %.1f frames\n", s.MedianTrackLength)
	fmt.Fprintf(&b, "  - Min/Max track length: %d/%d frames\n", s.MinTrackLength, s.MaxTrackLength)
	fmt.Fprintf(&b, "  - Tracks < %d frames (suspicious): %d\n", s.ShortTrackFrames, s.ShortTracks)
	fmt.Fprintf(&b, "\nFragmentation Indicators:\n")
	fmt.Fprintf(&b, "  - Avg new tracks per frame: %.2f\n", s.AvgNewTracksPerFrame)
	fmt.Fprintf(&b, "  - High values suggest track breaks/fragmentation\n")
	fmt.Fprintf(&b, "\nCell Count Consistency:\n")
	fmt.Fprintf(&b, "  - Cell count range: %d - %d\n", s.MinCellCount, s.MaxCellCount)
	fmt.Fprintf(&b, "  - Cell count std dev: %.2f\n", s.CellCountStdDev)
	fmt.Fprintf(&b, "\n%s\n", fence)
	fmt.Fprintf(&b, "INTERPRETATION:\n")
	fmt.Fprintf(&b, "%s\n", fence)
	fmt.Fprintf(&b, "✓ Good: Long average track lengths, low fragmentation\n")
	fmt.Fprintf(&b, "⚠ Bad: Many short tracks, high new tracks per frame\n")
	fmt.Fprintf(&b, "%s\n", fence)
	return b.String()
}

// reportLines is the number of numeric lines a well-formed report
// carries.
const reportLines = 9

// ParseReport extracts the numeric fields back out of a rendered
// report. Float fields carry the report's printed precision, not the
// original values.
func ParseReport(text string) (*TrackingStats, error) {
	s := &TrackingStats{}
	found := 0
	scan := func(line, format string, want int, args ...any) {
		if n, _ := fmt.Sscanf(line, format, args...); n == want {
			found++
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- Number of frames:"):
			scan(line, "- Number of frames: %d", 1, &s.FrameCount)
		case strings.HasPrefix(line, "- Total unique track IDs:"):
			scan(line, "- Total unique track IDs: %d", 1, &s.TrackCount)
		case strings.HasPrefix(line, "- Average track length:"):
			scan(line, "- Average track length: %f frames", 1, &s.MeanTrackLength)
		case strings.HasPrefix(line, "- Median track length:"):
			scan(line, "- Median track length: %f frames", 1, &s.MedianTrackLength)
		case strings.HasPrefix(line, "- Min/Max track length:"):
			scan(line, "- Min/Max track length: %d/%d frames", 2, &s.MinTrackLength, &s.MaxTrackLength)
		case strings.HasPrefix(line, "- Tracks <"):
			scan(line, "- Tracks < %d frames (suspicious): %d", 2, &s.ShortTrackFrames, &s.ShortTracks)
		case strings.HasPrefix(line, "- Avg new tracks per frame:"):
			scan(line, "- Avg new tracks per frame: %f", 1, &s.AvgNewTracksPerFrame)
		case strings.HasPrefix(line, "- Cell count range:"):
			scan(line, "- Cell count range: %d - %d", 2, &s.MinCellCount, &s.MaxCellCount)
		case strings.HasPrefix(line, "- Cell count std dev:"):
			scan(line, "- Cell count std dev: %f", 1, &s.CellCountStdDev)
		}
	}
	if found != reportLines {
		return nil, fmt.Errorf("not a tracking report: matched %d of %d fields", found, reportLines)
	}
	return s, nil
}
