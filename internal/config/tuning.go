// Package config loads run configuration for the index engine. The
// schema uses pointer-typed optional fields so a partial JSON file can
// be merged over the defaults without clobbering them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// SMAConfig is the unmixing parameter bundle.
type SMAConfig struct {
	Positivity        *bool `json:"positivity,omitempty"`
	SumToOne          *bool `json:"sum_to_one,omitempty"`
	ShadeNormalize    *bool `json:"shade_normalize,omitempty"`
	EmitRMS           *bool `json:"emit_rms,omitempty"`
	SelectedEndmember *int  `json:"selected_endmember,omitempty"`
}

// TuningConfig is the root run configuration.
type TuningConfig struct {
	// Engine params
	Workers *int     `json:"workers,omitempty"`
	Nodata  *int     `json:"nodata,omitempty"`
	Sensor  *string  `json:"sensor,omitempty"`
	Indices []string `json:"indices,omitempty"`

	// Unmixing params
	Endmembers *string    `json:"endmembers,omitempty"`
	SMA        *SMAConfig `json:"sma,omitempty"`

	// Output params
	DBPath      *string `json:"db_path,omitempty"`
	ProbePixels []int   `json:"probe_pixels,omitempty"`
}

// DefaultTuningConfig returns the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		Workers: ptrInt(0), // 0 = one worker per CPU
		Nodata:  ptrInt(-9999),
		Sensor:  ptrString("sentinel2"),
		Indices: []string{"NDVI"},
		SMA: &SMAConfig{
			Positivity:        ptrBool(true),
			SumToOne:          ptrBool(true),
			ShadeNormalize:    ptrBool(false),
			EmitRMS:           ptrBool(false),
			SelectedEndmember: ptrInt(1),
		},
	}
}

// LoadTuningConfig reads a JSON tuning file and merges it over the
// defaults. A missing path returns the defaults unchanged.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cfg := DefaultTuningConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read tuning config: %w", err)
	}
	var overlay TuningConfig
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse tuning config %s: %w", path, err)
	}
	cfg.Merge(&overlay)
	return cfg, nil
}

// Merge copies every non-nil field of overlay into the receiver.
func (c *TuningConfig) Merge(overlay *TuningConfig) {
	if overlay == nil {
		return
	}
	if overlay.Workers != nil {
		c.Workers = overlay.Workers
	}
	if overlay.Nodata != nil {
		c.Nodata = overlay.Nodata
	}
	if overlay.Sensor != nil {
		c.Sensor = overlay.Sensor
	}
	if len(overlay.Indices) > 0 {
		c.Indices = overlay.Indices
	}
	if overlay.Endmembers != nil {
		c.Endmembers = overlay.Endmembers
	}
	if overlay.SMA != nil {
		if c.SMA == nil {
			c.SMA = &SMAConfig{}
		}
		c.SMA.merge(overlay.SMA)
	}
	if overlay.DBPath != nil {
		c.DBPath = overlay.DBPath
	}
	if len(overlay.ProbePixels) > 0 {
		c.ProbePixels = overlay.ProbePixels
	}
}

func (s *SMAConfig) merge(overlay *SMAConfig) {
	if overlay.Positivity != nil {
		s.Positivity = overlay.Positivity
	}
	if overlay.SumToOne != nil {
		s.SumToOne = overlay.SumToOne
	}
	if overlay.ShadeNormalize != nil {
		s.ShadeNormalize = overlay.ShadeNormalize
	}
	if overlay.EmitRMS != nil {
		s.EmitRMS = overlay.EmitRMS
	}
	if overlay.SelectedEndmember != nil {
		s.SelectedEndmember = overlay.SelectedEndmember
	}
}

// Validate rejects configurations the engine cannot honor.
func (c *TuningConfig) Validate() error {
	if c.Nodata != nil && (*c.Nodata < -32768 || *c.Nodata > 32767) {
		return fmt.Errorf("nodata %d outside int16 range", *c.Nodata)
	}
	if c.SMA != nil && c.SMA.SelectedEndmember != nil && *c.SMA.SelectedEndmember < 1 {
		return fmt.Errorf("selected_endmember must be 1-based, got %d", *c.SMA.SelectedEndmember)
	}
	return nil
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }
