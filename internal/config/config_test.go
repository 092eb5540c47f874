package config

import "testing"

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.UploadDir != "uploads" {
		t.Fatalf("expected default upload dir, got %q", cfg.UploadDir)
	}
	if cfg.BaseURL != "http://localhost:3000" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
}

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_PortOverride(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "PORT": "1234"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:1234" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
}

func TestLoadConfigFromEnv_DataDirAndBaseURL(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"MASTER_SECRET": "x",
		"DATA_DIR":      "/var/lib/pairchat",
		"BASE_URL":      "https://chat.example.com",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.DataDir != "/var/lib/pairchat" {
		t.Fatalf("unexpected data dir %q", cfg.DataDir)
	}
	if cfg.BaseURL != "https://chat.example.com" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
}
