package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"ielts-practice-engine/internal/api"
	"ielts-practice-engine/internal/scoring"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
		// Source is "api", "postgres" or "static".
		Source string `yaml:"source"`
	} `yaml:"quiz"`
	API struct {
		BaseURL      string `yaml:"base_url"`
		Token        string `yaml:"token"`
		TokenURL     string `yaml:"token_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"api"`
	Attempt struct {
		TickInterval      string `yaml:"tick_interval"`
		SubmitConcurrency int    `yaml:"submit_concurrency"`
		AutoSubmitTimeout string `yaml:"auto_submit_timeout"`
	} `yaml:"attempt"`
	Review struct {
		ScrollSuppression string `yaml:"scroll_suppression"`
		TranscriptTTL     string `yaml:"transcript_ttl"`
	} `yaml:"review"`
	Scoring struct {
		Excellent int `yaml:"excellent"`
		Good      int `yaml:"good"`
		Pass      int `yaml:"pass"`
	} `yaml:"scoring"`
}

// Load reads YAML config from path. Secrets may come from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("API_CLIENT_SECRET"); v != "" {
		cfg.API.ClientSecret = v
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Thresholds returns the pass tiers, keeping defaults for unset values.
func (c Config) Thresholds() scoring.Thresholds {
	t := scoring.DefaultThresholds()
	if c.Scoring.Excellent > 0 {
		t.Excellent = c.Scoring.Excellent
	}
	if c.Scoring.Good > 0 {
		t.Good = c.Scoring.Good
	}
	if c.Scoring.Pass > 0 {
		t.Pass = c.Scoring.Pass
	}
	return t
}

func (c Config) APIConfig() api.Config {
	return api.Config{
		BaseURL:      c.API.BaseURL,
		Token:        c.API.Token,
		TokenURL:     c.API.TokenURL,
		ClientID:     c.API.ClientID,
		ClientSecret: c.API.ClientSecret,
		Timeout:      TTLDuration(c.API.Timeout, 15*time.Second),
	}
}

// QuizSource picks where quiz content comes from when not set explicitly.
func (c Config) QuizSource() string {
	switch {
	case c.Quiz.Source != "":
		return c.Quiz.Source
	case c.Postgres.URL != "":
		return "postgres"
	case c.API.BaseURL != "":
		return "api"
	default:
		return "static"
	}
}
