package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dconnresample/pkg/resample"
	"dconnresample/pkg/volume"
)

// TestDefaultConfig verifies the default values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Processing.NumCores < 1 {
		t.Errorf("Expected at least one core, got %d", cfg.Processing.NumCores)
	}
	if cfg.Surface.Method != resample.AdapBaryArea {
		t.Errorf("Expected ADAP_BARY_AREA, got %s", cfg.Surface.Method)
	}
	if cfg.Volume.Method != volume.Cubic {
		t.Errorf("Expected CUBIC, got %s", cfg.Volume.Method)
	}
	if cfg.SurfaceDilation() != 0 || cfg.VolumeDilation() != 0 {
		t.Errorf("Expected dilation to be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

// TestLoadMissingFile verifies that a missing file yields the defaults
func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Volume.Method != volume.Cubic {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

// TestLoadYAML verifies parsing of a YAML configuration
func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `processing:
  numCores: 3
surface:
  method: BARYCENTRIC
  largest: true
  dilateMM: 6
volume:
  method: trilinear
logging:
  verbose: true
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.NumCores != 3 {
		t.Errorf("Expected 3 cores, got %d", cfg.Processing.NumCores)
	}
	if cfg.Surface.Method != resample.Barycentric || !cfg.Surface.Largest {
		t.Errorf("Expected BARYCENTRIC with largest, got %s largest=%v", cfg.Surface.Method, cfg.Surface.Largest)
	}
	if cfg.SurfaceDilation() != 6 || cfg.VolumeDilation() != 0 {
		t.Errorf("Expected dilation 6 and 0, got %f and %f", cfg.SurfaceDilation(), cfg.VolumeDilation())
	}
	if cfg.Volume.Method != volume.Trilinear {
		t.Errorf("Expected TRILINEAR, got %s", cfg.Volume.Method)
	}
	if !cfg.Logging.Verbose || cfg.Logging.MaxAge != 7 {
		t.Errorf("Expected verbose logging with default max age, got %+v", cfg.Logging)
	}

	opts := cfg.Options(nil, nil)
	if opts.Workers != 3 || !opts.SurfaceLargest || opts.SurfaceMethod != resample.Barycentric {
		t.Errorf("Unexpected options %+v", opts)
	}
}

// TestLoadTOML verifies parsing of a TOML configuration
func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `[processing]
num_cores = 2

[volume]
method = "ENCLOSING_VOXEL"
dilate_mm = 4.5

[logging]
logfile = "/tmp/dconnresample.log"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.NumCores != 2 || cfg.Volume.Method != volume.EnclosingVoxel || cfg.VolumeDilation() != 4.5 {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.Logging.Logfile != "/tmp/dconnresample.log" {
		t.Errorf("Expected log file to be set, got %q", cfg.Logging.Logfile)
	}
}

// TestLoadInvalid verifies that bad values are rejected
func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	radius := filepath.Join(dir, "radius.yaml")
	if err := os.WriteFile(radius, []byte("surface:\n  dilateMM: 0\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(radius); !errors.Is(err, resample.InvalidDilationRadius) {
		t.Errorf("Expected InvalidDilationRadius, got %v", err)
	}

	method := filepath.Join(dir, "method.yaml")
	if err := os.WriteFile(method, []byte("volume:\n  method: SINC\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(method); err == nil {
		t.Errorf("Expected an unknown method to be rejected")
	}
}

// TestSaveAndReload verifies that a saved configuration loads back in both
// formats
func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Processing.NumCores = 5
	radius := 2.5
	cfg.Surface.DilateMM = &radius

	for _, name := range []string{"nested/config.yaml", "config.toml"} {
		path := filepath.Join(dir, name)
		if err := SaveConfig(cfg, path); err != nil {
			t.Fatalf("SaveConfig(%s) failed: %v", name, err)
		}
		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%s) failed: %v", name, err)
		}
		if loaded.Processing.NumCores != 5 || loaded.SurfaceDilation() != 2.5 || loaded.Surface.Method != resample.AdapBaryArea {
			t.Errorf("%s: unexpected config %+v", name, loaded)
		}
	}

	if err := CreateDefaultConfigFile(filepath.Join(dir, "default.yaml")); err != nil {
		t.Errorf("CreateDefaultConfigFile failed: %v", err)
	}
}
