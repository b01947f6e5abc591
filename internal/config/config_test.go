package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
server:
  address: "0.0.0.0"
  port: 8000
  max_upload_mb: 64

wyoming:
  enabled: true
  uri: "tcp://0.0.0.0:10300"

engine:
  endpoint: "http://localhost:9000"
  model: "whisper-1"
  timeout: 120
  max_workers: 4

refine:
  base_url: "https://api.openai.com/v1"
  model: "gpt-4o-mini"
  temperature: 0.1

logging:
  level: "info"
  format: "json"
  output: "stdout"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes() != 64<<20 {
		t.Errorf("MaxUploadBytes() = %d, want %d", cfg.Server.MaxUploadBytes(), 64<<20)
	}
	if cfg.Engine.MaxWorkers != 4 {
		t.Errorf("Engine.MaxWorkers = %d, want 4", cfg.Engine.MaxWorkers)
	}
	if cfg.Engine.GetTimeoutDuration().Seconds() != 120 {
		t.Errorf("GetTimeoutDuration() = %v, want 120s", cfg.Engine.GetTimeoutDuration())
	}
	if !cfg.Wyoming.Enabled || cfg.Wyoming.URI != "tcp://0.0.0.0:10300" {
		t.Errorf("Wyoming = %+v", cfg.Wyoming)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [not a map")); err == nil {
		t.Error("expected error for malformed yaml, got nil")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_API_KEY", "engine-secret")
	t.Setenv("OPENAI_API_KEY", "refine-secret")
	t.Setenv("OPENAI_BASE_URL", "https://proxy.example.com/v1")
	t.Setenv("OPENAI_LLM_MODEL", "gpt-4.1")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.APIKey != "engine-secret" {
		t.Errorf("Engine.APIKey = %q, want env value", cfg.Engine.APIKey)
	}
	if cfg.Refine.APIKey != "refine-secret" {
		t.Errorf("Refine.APIKey = %q, want env value", cfg.Refine.APIKey)
	}
	if cfg.Refine.BaseURL != "https://proxy.example.com/v1" {
		t.Errorf("Refine.BaseURL = %q, want env value", cfg.Refine.BaseURL)
	}
	if cfg.Refine.Model != "gpt-4.1" {
		t.Errorf("Refine.Model = %q, want env value", cfg.Refine.Model)
	}
}

func TestValidation(t *testing.T) {
	base := func() Config {
		return Config{
			Server:  ServerConfig{Address: "0.0.0.0", Port: 8000, MaxUploadMB: 16},
			Engine:  EngineConfig{Endpoint: "http://localhost:9000", Timeout: 60, MaxWorkers: 2},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"empty address", func(c *Config) { c.Server.Address = "" }, true},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }, true},
		{"empty engine endpoint", func(c *Config) { c.Engine.Endpoint = "" }, true},
		{"zero workers", func(c *Config) { c.Engine.MaxWorkers = 0 }, true},
		{"zero timeout", func(c *Config) { c.Engine.Timeout = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "logfmt" }, true},
		{"wyoming enabled without uri", func(c *Config) { c.Wyoming.Enabled = true }, true},
		{"wyoming disabled without uri", func(c *Config) { c.Wyoming.Enabled = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
