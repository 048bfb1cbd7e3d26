package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.PubMedBaseURL == "" {
		t.Error("PubMedBaseURL default is empty")
	}
	if cfg.PubMedMaxResults != 30 {
		t.Errorf("PubMedMaxResults = %d, want 30", cfg.PubMedMaxResults)
	}
	if cfg.HTTPTimeoutShort != 45*time.Second {
		t.Errorf("HTTPTimeoutShort = %v, want 45s", cfg.HTTPTimeoutShort)
	}
	if cfg.HTTPTimeoutLong != 180*time.Second {
		t.Errorf("HTTPTimeoutLong = %v, want 180s", cfg.HTTPTimeoutLong)
	}
	if cfg.BatchInterDelay != 20*time.Second {
		t.Errorf("BatchInterDelay = %v, want 20s", cfg.BatchInterDelay)
	}
	if cfg.BatchCooldownEvery != 3 {
		t.Errorf("BatchCooldownEvery = %d, want 3", cfg.BatchCooldownEvery)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PUBMED_MAX_RESULTS", "50")
	t.Setenv("PUBMED_API_KEY", "abc123")
	t.Setenv("LLM_MODEL", "sonnet-tier")
	t.Setenv("BATCH_INTER_DELAY_MS", "5000")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg := Load()

	if cfg.PubMedMaxResults != 50 {
		t.Errorf("PubMedMaxResults = %d, want 50", cfg.PubMedMaxResults)
	}
	if cfg.PubMedAPIKey != "abc123" {
		t.Errorf("PubMedAPIKey = %q", cfg.PubMedAPIKey)
	}
	if cfg.LLMModel != "sonnet-tier" {
		t.Errorf("LLMModel = %q", cfg.LLMModel)
	}
	if cfg.BatchInterDelay != 5*time.Second {
		t.Errorf("BatchInterDelay = %v, want 5s", cfg.BatchInterDelay)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
}

func TestBatchConfig(t *testing.T) {
	cfg := Config{
		BatchInterDelay:    2 * time.Second,
		BatchJitter:        time.Second,
		BatchCooldownEvery: 5,
		BatchCooldown:      10 * time.Second,
	}
	bc := cfg.BatchConfig()
	if bc.InterItemDelay != 2*time.Second || bc.Jitter != time.Second {
		t.Errorf("pacing = %v/%v", bc.InterItemDelay, bc.Jitter)
	}
	if bc.CooldownEvery != 5 || bc.Cooldown != 10*time.Second {
		t.Errorf("cooldown = %d/%v", bc.CooldownEvery, bc.Cooldown)
	}
	if bc.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", bc.Concurrency)
	}
}

func TestLogrusLevel(t *testing.T) {
	if got := (Config{LogLevel: "debug"}).LogrusLevel(); got != logrus.DebugLevel {
		t.Errorf("level = %v", got)
	}
	if got := (Config{LogLevel: "nonsense"}).LogrusLevel(); got != logrus.InfoLevel {
		t.Errorf("fallback level = %v", got)
	}
}
