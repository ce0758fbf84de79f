package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StreamConfig represents the root configuration for the streaming
// pipeline. All fields are optional pointers so a partial JSON file only
// overrides what it names; the Get* methods supply defaults for the rest.
type StreamConfig struct {
	// Cadence params
	UpdateHz      *float64 `json:"update_hz,omitempty"`
	WindowSeconds *float64 `json:"window_seconds,omitempty"`

	// Acquisition params
	SampleRate    *int `json:"sample_rate,omitempty"`
	BufferSeconds *int `json:"buffer_seconds,omitempty"`

	// Spectral params
	MaxFreqHz      *float64 `json:"max_freq_hz,omitempty"`
	RawTailSamples *int     `json:"raw_tail_samples,omitempty"`

	// Quality params
	RMSMin            *float64 `json:"rms_min,omitempty"`
	RMSMax            *float64 `json:"rms_max,omitempty"`
	FlatlineStd       *float64 `json:"flatline_std,omitempty"`
	LineNoiseRatioMax *float64 `json:"line_noise_ratio_max,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyStreamConfig returns a StreamConfig with all fields set to nil.
// Use LoadStreamConfig to load actual values from a file.
func EmptyStreamConfig() *StreamConfig {
	return &StreamConfig{}
}

// LoadStreamConfig loads a StreamConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadStreamConfig(path string) (*StreamConfig, error) {
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

	cfg := EmptyStreamConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *StreamConfig) Validate() error {
	if c.UpdateHz != nil && *c.UpdateHz <= 0 {
		return fmt.Errorf("update_hz must be positive, got %f", *c.UpdateHz)
	}
	if c.WindowSeconds != nil && *c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %f", *c.WindowSeconds)
	}
	if c.SampleRate != nil && *c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", *c.SampleRate)
	}
	if c.BufferSeconds != nil && *c.BufferSeconds <= 0 {
		return fmt.Errorf("buffer_seconds must be positive, got %d", *c.BufferSeconds)
	}
	if c.MaxFreqHz != nil && *c.MaxFreqHz <= 0 {
		return fmt.Errorf("max_freq_hz must be positive, got %f", *c.MaxFreqHz)
	}
	if c.RawTailSamples != nil && *c.RawTailSamples < 1 {
		return fmt.Errorf("raw_tail_samples must be at least 1, got %d", *c.RawTailSamples)
	}
	if c.RMSMin != nil && *c.RMSMin < 0 {
		return fmt.Errorf("rms_min must be non-negative, got %f", *c.RMSMin)
	}
	if c.RMSMin != nil && c.RMSMax != nil && *c.RMSMin >= *c.RMSMax {
		return fmt.Errorf("rms_min (%f) must be below rms_max (%f)", *c.RMSMin, *c.RMSMax)
	}
	if c.FlatlineStd != nil && *c.FlatlineStd < 0 {
		return fmt.Errorf("flatline_std must be non-negative, got %f", *c.FlatlineStd)
	}
	if c.LineNoiseRatioMax != nil {
		if *c.LineNoiseRatioMax < 0 || *c.LineNoiseRatioMax > 1 {
			return fmt.Errorf("line_noise_ratio_max must be between 0 and 1, got %f", *c.LineNoiseRatioMax)
		}
	}
	return nil
}

// GetUpdateHz returns the update_hz value or the default.
func (c *StreamConfig) GetUpdateHz() float64 {
	if c.UpdateHz == nil {
		return 12.0 // default
	}
	return *c.UpdateHz
}

// GetWindowSeconds returns the window_seconds value or the default.
func (c *StreamConfig) GetWindowSeconds() float64 {
	if c.WindowSeconds == nil {
		return 4.0 // default
	}
	return *c.WindowSeconds
}

// GetSampleRate returns the sample_rate value or the default.
func (c *StreamConfig) GetSampleRate() int {
	if c.SampleRate == nil {
		return 256
	}
	return *c.SampleRate
}

// GetBufferSeconds returns the buffer_seconds value or the default.
func (c *StreamConfig) GetBufferSeconds() int {
	if c.BufferSeconds == nil {
		return 10
	}
	return *c.BufferSeconds
}

// GetMaxFreqHz returns the max_freq_hz value or the default.
func (c *StreamConfig) GetMaxFreqHz() float64 {
	if c.MaxFreqHz == nil {
		return 60.0
	}
	return *c.MaxFreqHz
}

// GetRawTailSamples returns the raw_tail_samples value or the default,
// which is one cadence interval of samples, never less than 1.
func (c *StreamConfig) GetRawTailSamples() int {
	if c.RawTailSamples != nil {
		return *c.RawTailSamples
	}
	tail := int(float64(c.GetSampleRate()) / c.GetUpdateHz())
	if tail < 1 {
		tail = 1
	}
	return tail
}

// GetRMSMin returns the rms_min value or the default.
func (c *StreamConfig) GetRMSMin() float64 {
	if c.RMSMin == nil {
		return 0.5
	}
	return *c.RMSMin
}

// GetRMSMax returns the rms_max value or the default.
func (c *StreamConfig) GetRMSMax() float64 {
	if c.RMSMax == nil {
		return 200.0
	}
	return *c.RMSMax
}

// GetFlatlineStd returns the flatline_std value or the default.
func (c *StreamConfig) GetFlatlineStd() float64 {
	if c.FlatlineStd == nil {
		return 0.1
	}
	return *c.FlatlineStd
}

// GetLineNoiseRatioMax returns the line_noise_ratio_max value or the default.
func (c *StreamConfig) GetLineNoiseRatioMax() float64 {
	if c.LineNoiseRatioMax == nil {
		return 0.4
	}
	return *c.LineNoiseRatioMax
}
