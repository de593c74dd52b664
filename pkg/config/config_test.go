package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sec-form-d", cfg.Extract.Profile)
	assert.Empty(t, cfg.Extract.HeaderMode)
	assert.Equal(t, "rows", cfg.PDF.Backend)
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)

	_, err = Load("missing.toml")
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldmap.toml")
	content := `
[extract]
profile = "data-dictionary"
header_mode = "permissive"
workers = 4

[pdf]
backend = "content"
pages = "2-9"

[watch]
input_dir = "guides"
output_dir = "tables"
rescan = "@every 10m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data-dictionary", cfg.Extract.Profile)
	assert.Equal(t, "permissive", cfg.Extract.HeaderMode)
	assert.Equal(t, 4, cfg.Extract.Workers)
	assert.Equal(t, "content", cfg.PDF.Backend)
	assert.Equal(t, "2-9", cfg.PDF.Pages)
	assert.Equal(t, "@every 10m", cfg.Watch.Rescan)

	// Unset keys keep their defaults
	assert.Equal(t, 2.0, cfg.PDF.RowTolerance)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FIELDMAP_PROFILE", "data-dictionary")
	t.Setenv("FIELDMAP_LOG_LEVEL", "DEBUG")
	t.Setenv("FIELDMAP_CACHE", "false")
	t.Setenv("FIELDMAP_WORKERS", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data-dictionary", cfg.Extract.Profile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 8, cfg.Extract.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad header mode", "[extract]\nheader_mode = \"loose\"\n"},
		{"bad backend", "[pdf]\nbackend = \"ocr\"\n"},
		{"bad format", "[output]\nformat = \"xml\"\n"},
		{"zero workers", "[extract]\nworkers = 0\n"},
		{"bad rescan", "[watch]\nrescan = \"whenever\"\n"},
		{"file logging without file", "[logging]\noutput = \"file\"\nfile = \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fieldmap.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldmap.toml")
	require.NoError(t, os.WriteFile(path, []byte("[extract\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Extract.NameCase = "preserve"
	cfg.Server.RatePerSecond = 0.5
	cfg.Watch.Rescan = "0 * * * *"

	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, cfg.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}
