package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  port: "9090"
  allowed_origins: ["https://practice.example.com"]
redis:
  addr: localhost:6379
  ttl: 5m
quiz:
  ttl: 2m
api:
  base_url: https://api.example.com/v1
  client_id: engine
  token_url: https://auth.example.com/token
  timeout: 3s
attempt:
  tick_interval: 500ms
  submit_concurrency: 4
scoring:
  pass: 60
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("API_CLIENT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || len(cfg.Server.AllowedOrigins) != 1 || cfg.Attempt.SubmitConcurrency != 4 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	th := cfg.Thresholds()
	if th.Excellent != 85 || th.Good != 70 || th.Pass != 60 {
		t.Fatalf("unexpected thresholds %+v", th)
	}

	apiCfg := cfg.APIConfig()
	if apiCfg.ClientSecret != "from-env" || apiCfg.Timeout != 3*time.Second {
		t.Fatalf("unexpected api config %+v", apiCfg)
	}
	if cfg.QuizSource() != "api" {
		t.Fatalf("expected api quiz source, got %s", cfg.QuizSource())
	}
}

func TestTTLDuration(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := TTLDuration("garbage", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback for invalid duration, got %v", d)
	}
	if d := TTLDuration("90s", time.Minute); d != 90*time.Second {
		t.Fatalf("expected 90s, got %v", d)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
