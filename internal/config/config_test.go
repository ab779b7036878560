package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gcstore.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://localhost:9000
project: test-project
default_bucket: media
upload:
  chunk_size: 524288
logging:
  level: debug
metrics: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Endpoint != "http://localhost:9000" || cfg.Project != "test-project" || cfg.DefaultBucket != "media" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Upload.ChunkSize != 524288 {
		t.Errorf("ChunkSize = %d, want 524288", cfg.Upload.ChunkSize)
	}
	if !cfg.Metrics {
		t.Error("Metrics = false, want true")
	}

	// Unset fields fall back to defaults.
	if cfg.Upload.ResumableThreshold != 16*1024*1024 {
		t.Errorf("ResumableThreshold = %d, want default", cfg.Upload.ResumableThreshold)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() on missing file failed: %v", err)
	}
	def := defaultConfig()
	if *cfg != *def {
		t.Errorf("Load(missing) = %+v, want defaults %+v", cfg, def)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "endpoint: [not a scalar")
	if _, err := Load(path); err == nil {
		t.Error("Load() on invalid YAML succeeded")
	}
}
