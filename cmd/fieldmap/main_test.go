package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/fieldmap/pkg/config"
	"github.com/coolbeans/fieldmap/pkg/export"
)

const guideText = `Figure 1. Fields in the ISSUERS data file
Field Name Field Description Format Max Size May be NULL Key
CIK Central Index Key ALPHANUMERIC 10 No *
entityName Name of issuer ALPHANUMERIC 150 No
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guide.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractCommand(t *testing.T) {
	source := writeSource(t, guideText)
	output := filepath.Join(t.TempDir(), "out", "fields.csv")

	_, err := run(t, "extract", "--source", source, "--output", output, "--no-cache", "--dump-text")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t,
		"Section,Field Name,Field Description\nISSUERS,CIK,Central Index Key\nISSUERS,ENTITY_NAME,Name of issuer\n",
		string(data))

	dump, err := os.ReadFile(filepath.Join(filepath.Dir(output), debugTextFile))
	require.NoError(t, err)
	assert.Equal(t, guideText, string(dump))
}

func TestExtractCommand_Flags(t *testing.T) {
	source := writeSource(t, guideText)

	out, err := run(t, "extract", "--source", source, "--format", "table", "--name-case", "preserve", "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "| entityName ")
	assert.Contains(t, out, "2 rows")

	_, err = run(t, "extract", "--source", source, "--profile", "missing", "--format", "table", "--no-cache")
	assert.Error(t, err)

	_, err = run(t, "extract", "--source", source, "--accumulation", "sideways", "--format", "table", "--no-cache")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestExtractCommand_NoRecords(t *testing.T) {
	source := writeSource(t, "no tables in here\n")
	output := filepath.Join(t.TempDir(), "fields.csv")

	_, err := run(t, "extract", "--source", source, "--output", output, "--no-cache")
	require.NoError(t, err)
	assert.NoFileExists(t, output)
}

func TestExtractCommand_Errors(t *testing.T) {
	_, err := run(t, "extract")
	assert.Error(t, err)

	_, err = run(t, "extract", "--source", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	fake := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(fake, []byte("not a pdf"), 0o644))
	_, err = run(t, "extract", "--source", fake, "--no-cache")
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	_, err := run(t, "init", root)
	require.NoError(t, err)

	for _, dir := range []string{"input", "output", "profiles"} {
		assert.DirExists(t, filepath.Join(root, dir))
	}
	assert.FileExists(t, filepath.Join(root, "profiles", "sec-form-d.yaml"))

	cfg, err := config.Load(filepath.Join(root, config.DefaultFile))
	require.NoError(t, err)
	assert.Equal(t, config.NewDefaultConfig(), cfg)

	out, err := run(t, "profiles", "validate", filepath.Join(root, "profiles", "sec-form-d.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "sec-form-d")
}

func TestProfilesCommands(t *testing.T) {
	out, err := run(t, "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "sec-form-d")
	assert.Contains(t, out, "data-dictionary")

	out, err = run(t, "profiles", "show", "data-dictionary")
	require.NoError(t, err)
	assert.Contains(t, out, "header_mode: permissive")

	_, err = run(t, "profiles", "show", "nope")
	assert.Error(t, err)
}

func TestOutputHelpers(t *testing.T) {
	assert.Equal(t, filepath.Join("output", "formd.json"), defaultOutputPath("output", "in/formd.pdf", export.FormatJSON))

	opts, err := parserOptions(config.ExtractConfig{})
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = parserOptions(config.ExtractConfig{HeaderMode: "permissive", NameCase: "preserve", Workers: 4})
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	_, err = pdfOptions(config.PDFConfig{Backend: "ocr"})
	assert.Error(t, err)
}
