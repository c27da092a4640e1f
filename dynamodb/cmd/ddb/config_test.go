package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, configFileName), []byte(`
schema: schemas/app.yaml
dataDir: /var/ddb
lenientSignatures: true
`), 0o644))

	cfg, err := readConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "schemas", "app.yaml"), cfg.Schema)
	assert.Equal(t, "/var/ddb", cfg.DataDir)
	assert.True(t, cfg.LenientSignatures)
}

func TestReadConfig_Missing(t *testing.T) {
	cfg, err := readConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestReadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("schema: [unterminated"), 0o644))
	_, err := readConfig(dir)
	require.Error(t, err)
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"DDB_SCHEMA":   "/etc/schema.yaml",
		"DDB_DATA_DIR": "/tmp/data",
		"AWS_REGION":   "eu-north-1",
	}
	cfg := Config{Schema: "from-file.yaml", Endpoint: "http://localhost:8000"}
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, Config{
		Schema:   "/etc/schema.yaml",
		DataDir:  "/tmp/data",
		Region:   "eu-north-1",
		Endpoint: "http://localhost:8000",
	}, cfg)
}
