// Package config loads the CLI configuration: a YAML file, an optional .env
// file and LINQLENS_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jward/linqlens/internal/telemetry"
)

type Config struct {
	ContextType string `yaml:"context_type"`
	Namespace   string `yaml:"namespace"`
	ResultType  string `yaml:"result_type"`
	ModelsDir   string `yaml:"models_dir"`   // one model per .cs file
	ContextFile string `yaml:"context_file"` // the DbContext source
	Telemetry   struct {
		Traces      bool   `yaml:"traces"`
		Metrics     bool   `yaml:"metrics"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"telemetry"`
}

// LoadConfig reads path, if it is not empty, and applies environment
// overrides. Relative directories in the file are resolved against the
// file's directory.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	var cfg Config
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		base := filepath.Dir(path)
		cfg.ModelsDir = relativeTo(base, cfg.ModelsDir)
		cfg.ContextFile = relativeTo(base, cfg.ContextFile)
	}

	// 3. Override with Environment Variables if present
	overrides := map[string]*string{
		"LINQLENS_CONTEXT_TYPE": &cfg.ContextType,
		"LINQLENS_NAMESPACE":    &cfg.Namespace,
		"LINQLENS_RESULT_TYPE":  &cfg.ResultType,
		"LINQLENS_MODELS_DIR":   &cfg.ModelsDir,
		"LINQLENS_CONTEXT_FILE": &cfg.ContextFile,
		"LINQLENS_SERVICE_NAME": &cfg.Telemetry.ServiceName,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
	cfg.Telemetry.Traces = telemetry.EnvBool(os.Getenv("LINQLENS_TRACES"), cfg.Telemetry.Traces)
	cfg.Telemetry.Metrics = telemetry.EnvBool(os.Getenv("LINQLENS_METRICS"), cfg.Telemetry.Metrics)

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "linqlens"
	}
	return &cfg, nil
}

func relativeTo(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Sources reads the model files and the context file. Models are keyed by
// file name without the .cs extension.
func (c *Config) Sources() (models map[string]string, contextSource string, err error) {
	if c.ContextFile == "" {
		return nil, "", fmt.Errorf("no context file configured")
	}
	b, err := os.ReadFile(c.ContextFile)
	if err != nil {
		return nil, "", fmt.Errorf("read context: %w", err)
	}
	contextSource = string(b)

	models = make(map[string]string)
	if c.ModelsDir == "" {
		return models, contextSource, nil
	}
	paths, err := filepath.Glob(filepath.Join(c.ModelsDir, "*.cs"))
	if err != nil {
		return nil, "", fmt.Errorf("list models: %w", err)
	}
	sort.Strings(paths)
	ctxAbs, _ := filepath.Abs(c.ContextFile)
	for _, p := range paths {
		if abs, _ := filepath.Abs(p); abs == ctxAbs {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, "", fmt.Errorf("read model: %w", err)
		}
		models[strings.TrimSuffix(filepath.Base(p), ".cs")] = string(b)
	}
	return models, contextSource, nil
}
