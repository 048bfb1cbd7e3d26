// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/henrybloomingdale/clinlit/internal/batch"
	"github.com/henrybloomingdale/clinlit/internal/eutils"
	"github.com/henrybloomingdale/clinlit/internal/icite"
	"github.com/henrybloomingdale/clinlit/internal/llm"
)

// Config holds everything the CLI and server need to construct the
// upstream clients and the orchestrator.
type Config struct {
	PubMedBaseURL    string
	PubMedAPIKey     string
	PubMedMaxResults int

	ICiteBaseURL string

	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	LLMLongModel string

	HTTPTimeoutShort time.Duration
	HTTPTimeoutLong  time.Duration

	BatchInterDelay    time.Duration
	BatchJitter        time.Duration
	BatchCooldownEvery int
	BatchCooldown      time.Duration

	HTTPAddr string
	LogLevel string
}

// Load reads the environment, applying defaults for anything unset.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PUBMED_BASE_URL", eutils.DefaultBaseURL)
	v.SetDefault("PUBMED_API_KEY", "")
	v.SetDefault("PUBMED_MAX_RESULTS", eutils.DefaultMaxResults)

	v.SetDefault("ICITE_BASE_URL", icite.DefaultBaseURL)

	v.SetDefault("LLM_BASE_URL", "")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_MODEL", llm.DefaultModel)
	v.SetDefault("LLM_LONG_MODEL", "")

	v.SetDefault("HTTP_TIMEOUT_SHORT_MS", 45000)
	v.SetDefault("HTTP_TIMEOUT_LONG_MS", 180000)

	v.SetDefault("BATCH_INTER_DELAY_MS", 20000)
	v.SetDefault("BATCH_JITTER_MS", 10000)
	v.SetDefault("BATCH_COOLDOWN_EVERY_N", 3)
	v.SetDefault("BATCH_COOLDOWN_MS", 60000)

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")

	return Config{
		PubMedBaseURL:    v.GetString("PUBMED_BASE_URL"),
		PubMedAPIKey:     v.GetString("PUBMED_API_KEY"),
		PubMedMaxResults: v.GetInt("PUBMED_MAX_RESULTS"),

		ICiteBaseURL: v.GetString("ICITE_BASE_URL"),

		LLMBaseURL:   v.GetString("LLM_BASE_URL"),
		LLMAPIKey:    v.GetString("LLM_API_KEY"),
		LLMModel:     v.GetString("LLM_MODEL"),
		LLMLongModel: v.GetString("LLM_LONG_MODEL"),

		HTTPTimeoutShort: millis(v, "HTTP_TIMEOUT_SHORT_MS"),
		HTTPTimeoutLong:  millis(v, "HTTP_TIMEOUT_LONG_MS"),

		BatchInterDelay:    millis(v, "BATCH_INTER_DELAY_MS"),
		BatchJitter:        millis(v, "BATCH_JITTER_MS"),
		BatchCooldownEvery: v.GetInt("BATCH_COOLDOWN_EVERY_N"),
		BatchCooldown:      millis(v, "BATCH_COOLDOWN_MS"),

		HTTPAddr: v.GetString("HTTP_ADDR"),
		LogLevel: v.GetString("LOG_LEVEL"),
	}
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

// BatchConfig translates the pacing settings into an executor config.
func (c Config) BatchConfig() batch.Config {
	cfg := batch.AnalysisConfig()
	if c.BatchInterDelay > 0 {
		cfg.InterItemDelay = c.BatchInterDelay
	}
	if c.BatchJitter > 0 {
		cfg.Jitter = c.BatchJitter
	}
	if c.BatchCooldownEvery > 0 {
		cfg.CooldownEvery = c.BatchCooldownEvery
	}
	if c.BatchCooldown > 0 {
		cfg.Cooldown = c.BatchCooldown
	}
	return cfg
}

// LogrusLevel parses LogLevel, falling back to info on garbage.
func (c Config) LogrusLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
