// Package units provides shared constants, validation, and
// calibration for the measurement units used in trajectory exports.
package units

// Length unit constants
const (
	Pixels      = "px"
	Microns     = "um"
	Millimeters = "mm"
)

// Time unit constants
const (
	Frames  = "frames"
	Seconds = "s"
	Minutes = "min"
)

// ValidLengthUnits contains all valid length unit values
var ValidLengthUnits = []string{Pixels, Microns, Millimeters}

// ValidTimeUnits contains all valid time unit values
var ValidTimeUnits = []string{Frames, Seconds, Minutes}

// IsValidLengthUnit checks if the given unit is a known length unit
func IsValidLengthUnit(unit string) bool {
	for _, validUnit := range ValidLengthUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// IsValidTimeUnit checks if the given unit is a known time unit
func IsValidTimeUnit(unit string) bool {
	for _, validUnit := range ValidTimeUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// LengthUnitsString returns a comma-separated string of valid length
// units for error messages
func LengthUnitsString() string {
	return "px, um, mm"
}

// TimeUnitsString returns a comma-separated string of valid time
// units for error messages
func TimeUnitsString() string {
	return "frames, s, min"
}

// Calibration maps pixel and frame measurements onto physical units.
// Centroids are stored in pixels and timestamps in frame indices.
type Calibration struct {
	MicronsPerPixel float64 `json:"microns_per_pixel"`
	MinutesPerFrame float64 `json:"minutes_per_frame"`
}

// ConvertLength converts a pixel distance to the target units
func (c Calibration) ConvertLength(px float64, targetUnits string) float64 {
	switch targetUnits {
	case Microns:
		return px * c.MicronsPerPixel
	case Millimeters:
		return px * c.MicronsPerPixel / 1000.0
	case Pixels:
		return px
	default:
		return px // default to pixels if unknown unit
	}
}

// ConvertTime converts a frame index to the target units
func (c Calibration) ConvertTime(frame float64, targetUnits string) float64 {
	switch targetUnits {
	case Minutes:
		return frame * c.MinutesPerFrame
	case Seconds:
		return frame * c.MinutesPerFrame * 60.0
	case Frames:
		return frame
	default:
		return frame // default to frames if unknown unit
	}
}
