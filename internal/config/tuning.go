package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/banshee-data/lineage.report/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same JSON can be
// used for both startup configuration and runtime inspection.
type TuningConfig struct {
	// Input resolution params
	LineageCandidates []string `json:"lineage_candidates,omitempty"`
	MaskPattern       *string  `json:"mask_pattern,omitempty"`
	DataRoot          *string  `json:"data_root,omitempty"`

	// Analysis params
	ShortTrackFrames *int `json:"short_track_frames,omitempty"`
	CensusWorkers    *int `json:"census_workers,omitempty"`

	// Calibration params
	MicronsPerPixel *float64 `json:"microns_per_pixel,omitempty"`
	MinutesPerFrame *float64 `json:"minutes_per_frame,omitempty"`
	ExportUnits     *string  `json:"export_units,omitempty"`

	// Server params
	ListenAddr    *string `json:"listen_addr,omitempty"`
	DBPath        *string `json:"db_path,omitempty"`
	WatchInterval *string `json:"watch_interval,omitempty"` // duration string like "60s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // deeper packages
		"../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	// Validate LineageCandidates entries if set
	for _, name := range c.LineageCandidates {
		if name == "" {
			return fmt.Errorf("lineage_candidates must not contain empty names")
		}
		if filepath.Base(name) != name {
			return fmt.Errorf("lineage candidate %q must be a bare file name", name)
		}
	}

	// Validate MaskPattern if set
	if c.MaskPattern != nil && *c.MaskPattern == "" {
		return fmt.Errorf("mask_pattern must not be empty")
	}

	// Validate ShortTrackFrames if set
	if c.ShortTrackFrames != nil {
		if *c.ShortTrackFrames < 1 {
			return fmt.Errorf("short_track_frames must be positive, got %d", *c.ShortTrackFrames)
		}
	}

	// Validate CensusWorkers if set
	if c.CensusWorkers != nil {
		if *c.CensusWorkers < 0 {
			return fmt.Errorf("census_workers must be non-negative, got %d", *c.CensusWorkers)
		}
	}

	// Validate calibration factors if set
	if c.MicronsPerPixel != nil {
		if *c.MicronsPerPixel <= 0 {
			return fmt.Errorf("microns_per_pixel must be positive, got %f", *c.MicronsPerPixel)
		}
	}
	if c.MinutesPerFrame != nil {
		if *c.MinutesPerFrame <= 0 {
			return fmt.Errorf("minutes_per_frame must be positive, got %f", *c.MinutesPerFrame)
		}
	}

	// Validate ExportUnits if set
	if c.ExportUnits != nil {
		if !units.IsValidLengthUnit(*c.ExportUnits) {
			return fmt.Errorf("export_units must be one of %s, got %q", units.LengthUnitsString(), *c.ExportUnits)
		}
	}

	// Validate WatchInterval can be parsed if set
	if c.WatchInterval != nil && *c.WatchInterval != "" {
		if _, err := time.ParseDuration(*c.WatchInterval); err != nil {
			return fmt.Errorf("invalid watch_interval '%s': %w", *c.WatchInterval, err)
		}
	}

	return nil
}

// GetLineageCandidates returns the ordered lineage table candidates or the default.
func (c *TuningConfig) GetLineageCandidates() []string {
	if len(c.LineageCandidates) == 0 {
		return nil // resolver falls back to its own defaults
	}
	return c.LineageCandidates
}

// GetMaskPattern returns the mask_pattern value or the default.
func (c *TuningConfig) GetMaskPattern() string {
	if c.MaskPattern == nil || *c.MaskPattern == "" {
		return "mask*.tif" // default
	}
	return *c.MaskPattern
}

// GetDataRoot returns the data_root value or the default.
func (c *TuningConfig) GetDataRoot() string {
	if c.DataRoot == nil || *c.DataRoot == "" {
		return "data" // default
	}
	return *c.DataRoot
}

// GetShortTrackFrames returns the short_track_frames value or the default.
func (c *TuningConfig) GetShortTrackFrames() int {
	if c.ShortTrackFrames == nil {
		return 3 // default
	}
	return *c.ShortTrackFrames
}

// GetCensusWorkers returns the census_workers value or the default.
// A zero value means one worker per CPU.
func (c *TuningConfig) GetCensusWorkers() int {
	if c.CensusWorkers == nil || *c.CensusWorkers == 0 {
		return runtime.NumCPU()
	}
	return *c.CensusWorkers
}

// GetMicronsPerPixel returns the microns_per_pixel value or the default.
func (c *TuningConfig) GetMicronsPerPixel() float64 {
	if c.MicronsPerPixel == nil {
		return 1.0 // default: uncalibrated
	}
	return *c.MicronsPerPixel
}

// GetMinutesPerFrame returns the minutes_per_frame value or the default.
func (c *TuningConfig) GetMinutesPerFrame() float64 {
	if c.MinutesPerFrame == nil {
		return 1.0 // default: uncalibrated
	}
	return *c.MinutesPerFrame
}

// GetExportUnits returns the export_units value or the default.
func (c *TuningConfig) GetExportUnits() string {
	if c.ExportUnits == nil || *c.ExportUnits == "" {
		return units.Pixels // default
	}
	return *c.ExportUnits
}

// GetCalibration returns the spatial and temporal calibration factors.
func (c *TuningConfig) GetCalibration() units.Calibration {
	return units.Calibration{
		MicronsPerPixel: c.GetMicronsPerPixel(),
		MinutesPerFrame: c.GetMinutesPerFrame(),
	}
}

// GetListenAddr returns the listen_addr value or the default.
func (c *TuningConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8089" // default
	}
	return *c.ListenAddr
}

// GetDBPath returns the db_path value or the default.
func (c *TuningConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "lineage.db" // default
	}
	return *c.DBPath
}

// GetWatchInterval parses and returns the WatchInterval as a time.Duration.
func (c *TuningConfig) GetWatchInterval() time.Duration {
	if c.WatchInterval == nil || *c.WatchInterval == "" {
		return 60 * time.Second // default
	}
	d, err := time.ParseDuration(*c.WatchInterval)
	if err != nil {
		return 60 * time.Second // default on parse error
	}
	return d
}
