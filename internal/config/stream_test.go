package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmptyStreamConfigDefaults(t *testing.T) {
	cfg := EmptyStreamConfig()

	if cfg.GetUpdateHz() != 12.0 {
		t.Errorf("GetUpdateHz() = %f, want 12.0", cfg.GetUpdateHz())
	}
	if cfg.GetWindowSeconds() != 4.0 {
		t.Errorf("GetWindowSeconds() = %f, want 4.0", cfg.GetWindowSeconds())
	}
	if cfg.GetSampleRate() != 256 {
		t.Errorf("GetSampleRate() = %d, want 256", cfg.GetSampleRate())
	}
	if cfg.GetBufferSeconds() != 10 {
		t.Errorf("GetBufferSeconds() = %d, want 10", cfg.GetBufferSeconds())
	}
	if cfg.GetMaxFreqHz() != 60.0 {
		t.Errorf("GetMaxFreqHz() = %f, want 60.0", cfg.GetMaxFreqHz())
	}
	if cfg.GetRMSMin() != 0.5 {
		t.Errorf("GetRMSMin() = %f, want 0.5", cfg.GetRMSMin())
	}
	if cfg.GetRMSMax() != 200.0 {
		t.Errorf("GetRMSMax() = %f, want 200.0", cfg.GetRMSMax())
	}
	if cfg.GetFlatlineStd() != 0.1 {
		t.Errorf("GetFlatlineStd() = %f, want 0.1", cfg.GetFlatlineStd())
	}
	if cfg.GetLineNoiseRatioMax() != 0.4 {
		t.Errorf("GetLineNoiseRatioMax() = %f, want 0.4", cfg.GetLineNoiseRatioMax())
	}
}

func TestGetRawTailSamplesDerived(t *testing.T) {
	cfg := EmptyStreamConfig()
	// 256 Hz at 12 updates/s truncates to 21 samples per interval.
	if got := cfg.GetRawTailSamples(); got != 21 {
		t.Errorf("GetRawTailSamples() = %d, want 21", got)
	}

	cfg.RawTailSamples = ptrInt(64)
	if got := cfg.GetRawTailSamples(); got != 64 {
		t.Errorf("GetRawTailSamples() = %d, want explicit 64", got)
	}

	// An extreme cadence never derives a tail below 1.
	low := EmptyStreamConfig()
	low.SampleRate = ptrInt(1)
	low.UpdateHz = ptrFloat64(100)
	if got := low.GetRawTailSamples(); got != 1 {
		t.Errorf("GetRawTailSamples() = %d, want floor of 1", got)
	}
}

func TestLoadStreamConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "stream.json")

	testJSON := `{
  "update_hz": 10,
  "window_seconds": 2,
  "sample_rate": 128,
  "max_freq_hz": 45,
  "rms_max": 300
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadStreamConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetUpdateHz() != 10 {
		t.Errorf("GetUpdateHz() = %f, want 10", cfg.GetUpdateHz())
	}
	if cfg.GetWindowSeconds() != 2 {
		t.Errorf("GetWindowSeconds() = %f, want 2", cfg.GetWindowSeconds())
	}
	if cfg.GetSampleRate() != 128 {
		t.Errorf("GetSampleRate() = %d, want 128", cfg.GetSampleRate())
	}
	if cfg.GetMaxFreqHz() != 45 {
		t.Errorf("GetMaxFreqHz() = %f, want 45", cfg.GetMaxFreqHz())
	}
	if cfg.GetRMSMax() != 300 {
		t.Errorf("GetRMSMax() = %f, want 300", cfg.GetRMSMax())
	}

	// Fields the file omits keep their defaults.
	if cfg.GetRMSMin() != 0.5 {
		t.Errorf("GetRMSMin() = %f, want default 0.5", cfg.GetRMSMin())
	}
	if cfg.GetLineNoiseRatioMax() != 0.4 {
		t.Errorf("GetLineNoiseRatioMax() = %f, want default 0.4", cfg.GetLineNoiseRatioMax())
	}
}

func TestLoadStreamConfigMissing(t *testing.T) {
	_, err := LoadStreamConfig("/nonexistent/path/to/stream.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadStreamConfigWrongExtension(t *testing.T) {
	_, err := LoadStreamConfig("/tmp/stream.yaml")
	if err == nil {
		t.Error("Expected error for non-json extension, got nil")
	}
}

func TestLoadStreamConfigInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(configPath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadStreamConfig(configPath); err == nil {
		t.Error("Expected error for malformed JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *StreamConfig
		wantErr bool
	}{
		{"empty is valid", EmptyStreamConfig(), false},
		{"negative update_hz", &StreamConfig{UpdateHz: ptrFloat64(-1)}, true},
		{"zero window", &StreamConfig{WindowSeconds: ptrFloat64(0)}, true},
		{"zero sample rate", &StreamConfig{SampleRate: ptrInt(0)}, true},
		{"zero buffer", &StreamConfig{BufferSeconds: ptrInt(0)}, true},
		{"negative max freq", &StreamConfig{MaxFreqHz: ptrFloat64(-60)}, true},
		{"tail below one", &StreamConfig{RawTailSamples: ptrInt(0)}, true},
		{"rms min above max", &StreamConfig{RMSMin: ptrFloat64(300), RMSMax: ptrFloat64(200)}, true},
		{"negative flatline std", &StreamConfig{FlatlineStd: ptrFloat64(-0.1)}, true},
		{"line-noise ratio above one", &StreamConfig{LineNoiseRatioMax: ptrFloat64(1.5)}, true},
		{"full valid override", &StreamConfig{
			UpdateHz:          ptrFloat64(24),
			WindowSeconds:     ptrFloat64(2),
			SampleRate:        ptrInt(512),
			BufferSeconds:     ptrInt(20),
			MaxFreqHz:         ptrFloat64(100),
			RawTailSamples:    ptrInt(32),
			RMSMin:            ptrFloat64(0.1),
			RMSMax:            ptrFloat64(500),
			FlatlineStd:       ptrFloat64(0.05),
			LineNoiseRatioMax: ptrFloat64(0.6),
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadStreamConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "stream.json")
	if err := os.WriteFile(configPath, []byte(`{"update_hz": -5}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadStreamConfig(configPath); err == nil {
		t.Error("Expected validation error, got nil")
	}
}
