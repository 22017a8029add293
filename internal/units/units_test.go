package units

import (
	"math"
	"testing"
)

func TestConvertLength(t *testing.T) {
	cal := Calibration{MicronsPerPixel: 0.65, MinutesPerFrame: 5.0}

	tests := []struct {
		name     string
		px       float64
		units    string
		expected float64
	}{
		{"100 px to um", 100.0, Microns, 65.0},
		{"100 px to mm", 100.0, Millimeters, 0.065},
		{"100 px to px", 100.0, Pixels, 100.0},
		{"unknown units default to px", 100.0, "unknown", 100.0},
		{"0 px to um", 0.0, Microns, 0.0},
		{"single pixel", 1.0, Microns, 0.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cal.ConvertLength(tt.px, tt.units)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ConvertLength(%f, %s) = %f, want %f", tt.px, tt.units, result, tt.expected)
			}
		})
	}
}

func TestConvertTime(t *testing.T) {
	cal := Calibration{MicronsPerPixel: 0.65, MinutesPerFrame: 5.0}

	tests := []struct {
		name     string
		frame    float64
		units    string
		expected float64
	}{
		{"frame 12 to minutes", 12.0, Minutes, 60.0},
		{"frame 12 to seconds", 12.0, Seconds, 3600.0},
		{"frame 12 to frames", 12.0, Frames, 12.0},
		{"unknown units default to frames", 12.0, "unknown", 12.0},
		{"frame 0", 0.0, Minutes, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cal.ConvertTime(tt.frame, tt.units)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ConvertTime(%f, %s) = %f, want %f", tt.frame, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValidLengthUnit(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid px", Pixels, true},
		{"valid um", Microns, true},
		{"valid mm", Millimeters, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "PX", false},
		{"time unit is not a length unit", Minutes, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidLengthUnit(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValidLengthUnit(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestIsValidTimeUnit(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid frames", Frames, true},
		{"valid seconds", Seconds, true},
		{"valid minutes", Minutes, true},
		{"invalid unit", "hours", false},
		{"empty string", "", false},
		{"length unit is not a time unit", Pixels, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidTimeUnit(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValidTimeUnit(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestUnitsStrings(t *testing.T) {
	if got := LengthUnitsString(); got != "px, um, mm" {
		t.Errorf("LengthUnitsString() = %s, want 'px, um, mm'", got)
	}
	if got := TimeUnitsString(); got != "frames, s, min" {
		t.Errorf("TimeUnitsString() = %s, want 'frames, s, min'", got)
	}
}
