package trajectory

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/banshee-data/lineage.report/internal/units"
)

// Export bundles a summary with its points for JSON consumers.
type Export struct {
	Summary Summary `json:"summary"`
	Points  []Point `json:"points"`
}

// WriteCSV writes points as CSV with a header row.
func WriteCSV(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"track_id", "frame", "y", "x"}); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			strconv.Itoa(int(p.TrackID)),
			strconv.Itoa(p.Frame),
			strconv.FormatFloat(p.Y, 'f', -1, 64),
			strconv.FormatFloat(p.X, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the summary and points as one JSON document.
func WriteJSON(w io.Writer, summary Summary, points []Point) error {
	return json.NewEncoder(w).Encode(Export{Summary: summary, Points: points})
}

// Calibrate returns a copy of points with coordinates converted from
// pixels to the target length unit. The input is left untouched.
func Calibrate(points []Point, cal units.Calibration, targetUnits string) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		p.Y = cal.ConvertLength(p.Y, targetUnits)
		p.X = cal.ConvertLength(p.X, targetUnits)
		out[i] = p
	}
	return out
}
