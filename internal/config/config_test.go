package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "orvile/ultrasound-fetus-dataset", cfg.Dataset.Handle)
	assert.Equal(t, []string{"train", "val", "test"}, cfg.Correlate.Splits)
	assert.Equal(t, 11, cfg.Ellipse.BlockSize)
	assert.Equal(t, "fetus-ultrasound-data", cfg.Storage.Bucket)

	assert.Equal(t, "data/Ultrasound Fetus Dataset/Ultrasound Fetus Dataset/Data/Data", cfg.Extract.Source)
	assert.Equal(t, cfg.Annotate.BaseDir, cfg.Extract.Source)
	assert.Equal(t, []string{"train", "validation", "test"}, cfg.Strip.Folders)
}

func TestLoadConfig_Success(t *testing.T) {
	path := writeConfig(t, `
storage:
  bucket: my-bucket
  parallelism: 4
overlay:
  weight: 0.5
ellipse:
  categories: [benign, malignant]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "my-bucket", cfg.Storage.Bucket)
	assert.Equal(t, 4, cfg.Storage.Parallelism)
	assert.Equal(t, 0.5, cfg.Overlay.Weight)
	assert.Equal(t, []string{"benign", "malignant"}, cfg.Ellipse.Categories)

	// Unset keys keep their defaults
	assert.Equal(t, "clean-data-no-annotations", cfg.Strip.Dest)
	assert.Equal(t, 127, cfg.Overlay.Threshold)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/path/that/does/not/exist/config.yaml")
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "storage: [unclosed")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"weight too high", "overlay:\n  weight: 1.5\n", "overlay.weight"},
		{"even block size", "ellipse:\n  blockSize: 10\n", "ellipse.blockSize"},
		{"bad color", "overlay:\n  color: \"#GG0000\"\n", "overlay.color"},
		{"bad palette", "annotate:\n  colors:\n    NORMAL: nope\n", "annotate.colors"},
		{"empty categories", "ellipse:\n  categories: []\n", "ellipse.categories"},
		{"duplicate split", "correlate:\n  splits: [train, Train]\n", "duplicate correlate.splits"},
		{"zero parallelism", "storage:\n  parallelism: 0\n", "storage.parallelism"},
		{"empty bucket", "storage:\n  bucket: \"\"\n", "storage.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolve_Order(t *testing.T) {
	flagPath := writeConfig(t, "storage:\n  bucket: from-flag\n")
	envPath := writeConfig(t, "storage:\n  bucket: from-env\n")

	t.Setenv(EnvConfigPath, envPath)

	cfg, used, err := Resolve(flagPath)
	require.NoError(t, err)
	assert.Equal(t, flagPath, used)
	assert.Equal(t, "from-flag", cfg.Storage.Bucket)

	cfg, used, err = Resolve("")
	require.NoError(t, err)
	assert.Equal(t, envPath, used)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
}

func TestResolve_MissingExplicitFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	_, _, err := Resolve(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestResolve_FallsBackToDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	orig := DefaultPath
	DefaultPath = filepath.Join(t.TempDir(), "absent", "config.yaml")
	t.Cleanup(func() { DefaultPath = orig })

	cfg, used, err := Resolve("")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Default(), cfg)
}
