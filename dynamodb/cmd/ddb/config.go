package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configFileName = "ddb.yaml"

// Config holds defaults for the ddb commands.
// Loaded from ddb.yaml if present, then overridden by environment variables.
type Config struct {
	// Schema is the path of the schema document. Relative paths are resolved
	// against the directory of ddb.yaml.
	Schema string `yaml:"schema"`

	// DataDir is where BadgerDB stores items written by the put command.
	DataDir string `yaml:"dataDir"`

	// Region and Endpoint configure the AWS DynamoDB client.
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// LenientSignatures lets entity indexes the table does not declare
	// pass through with a warning.
	LenientSignatures bool `yaml:"lenientSignatures"`
}

// LoadConfig loads a .env file from the working directory if there is one,
// then reads ddb.yaml searching up from dir and applies environment
// overrides. A missing ddb.yaml is not an error.
func LoadConfig(dir string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := readConfig(dir)
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func readConfig(dir string) (Config, error) {
	var cfg Config
	path := findConfigFile(dir)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(path), cfg.Schema)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("DDB_SCHEMA"); v != "" {
		c.Schema = v
	}
	if v := getenv("DDB_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("DDB_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := getenv("AWS_REGION"); v != "" {
		c.Region = v
	}
	if getenv("DDB_LENIENT_SIGNATURES") == "true" {
		c.LenientSignatures = true
	}
}

// findConfigFile searches for ddb.yaml walking up from dir.
func findConfigFile(dir string) string {
	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}
