package main

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// AIFileConfig holds AI service settings from the config file.
type AIFileConfig struct {
	EmbeddingHost  string `yaml:"embedding_host"`
	ExtractorHost  string `yaml:"extractor_host"`
	EmbeddingModel string `yaml:"embedding_model"`
	ExtractorModel string `yaml:"extractor_model"`
}

// AppConfig is the root configuration file structure.
type AppConfig struct {
	DBPath   string       `yaml:"db_path"`
	PoolSize int          `yaml:"pool_size"`
	AI       AIFileConfig `yaml:"ai"`
}

// loadConfig reads a config from the given path. An empty path tries
// ./duograph.yaml; a missing file yields defaults. Environment variables
// (loaded from .env by main) override file values.
func loadConfig(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	if path == "" {
		path = "duograph.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DBPath: "./duograph_db",
		AI: AIFileConfig{
			EmbeddingHost:  "http://localhost:11434/v1",
			ExtractorHost:  "http://localhost:11434/v1",
			EmbeddingModel: "embeddinggemma",
			ExtractorModel: "qwen2.5:3b",
		},
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("DUOGRAPH_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DUOGRAPH_EMBEDDING_HOST"); v != "" {
		cfg.AI.EmbeddingHost = v
	}
	if v := os.Getenv("DUOGRAPH_EXTRACTOR_HOST"); v != "" {
		cfg.AI.ExtractorHost = v
	}
	if v := os.Getenv("DUOGRAPH_EMBEDDING_MODEL"); v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v := os.Getenv("DUOGRAPH_EXTRACTOR_MODEL"); v != "" {
		cfg.AI.ExtractorModel = v
	}
}
