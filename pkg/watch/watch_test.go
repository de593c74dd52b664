package watch

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/fieldmap/pkg/export"
	"github.com/coolbeans/fieldmap/pkg/pipeline"
)

const guideText = `Figure 1. Fields in the ISSUERS data file
Field Name Field Description Format Max Size May be NULL Key
CIK Central Index Key ALPHANUMERIC 10 No *
ENTITYNAME Name of issuer ALPHANUMERIC 150 No
`

func newTestWatcher(t *testing.T, opts Options) (*Watcher, string, string) {
	t.Helper()
	root := t.TempDir()
	if opts.InputDir == "" {
		opts.InputDir = filepath.Join(root, "input")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(root, "output")
	}
	require.NoError(t, os.MkdirAll(opts.InputDir, 0o755))

	w, err := New(pipeline.New(nil, nil, nil), opts, nil)
	require.NoError(t, err)
	return w, opts.InputDir, opts.OutputDir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestNew_Validation(t *testing.T) {
	p := pipeline.New(nil, nil, nil)

	_, err := New(nil, Options{InputDir: "in", OutputDir: "out"}, nil)
	assert.Error(t, err)

	_, err = New(p, Options{InputDir: "in"}, nil)
	assert.Error(t, err)

	_, err = New(p, Options{InputDir: "in", OutputDir: "out", Format: "xml"}, nil)
	assert.ErrorIs(t, err, export.ErrUnknownFormat)

	_, err = New(p, Options{InputDir: "in", OutputDir: "out", Format: export.FormatTable}, nil)
	assert.ErrorIs(t, err, export.ErrUnknownFormat)

	_, err = New(p, Options{InputDir: "in", OutputDir: "out", Rescan: "every so often"}, nil)
	assert.Error(t, err)

	w, err := New(p, Options{InputDir: "in", OutputDir: "out", Rescan: "@every 1h"}, nil)
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, w.opts.Format)
	assert.Equal(t, DefaultDebounce, w.opts.Debounce)
}

func TestScanNow(t *testing.T) {
	w, in, out := newTestWatcher(t, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(in, "formd.txt"), []byte(guideText), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("nothing to see\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "readme.md"), []byte(guideText), 0o644))

	results := w.ScanNow(context.Background())
	require.Len(t, results, 2)

	assert.Equal(t, filepath.Join(in, "formd.txt"), results[0].Source)
	assert.Equal(t, 2, results[0].Records)
	assert.Equal(t, filepath.Join(out, "formd.csv"), results[0].Output)
	assert.NoError(t, results[0].Err)

	// A guide with no fields writes nothing
	assert.Equal(t, 0, results[1].Records)
	assert.Empty(t, results[1].Output)
	assert.NoFileExists(t, filepath.Join(out, "notes.csv"))

	rows := readCSV(t, filepath.Join(out, "formd.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ISSUERS", "CIK", "Central Index Key"}, rows[1])
	assert.Equal(t, []string{"ISSUERS", "ENTITYNAME", "Name of issuer"}, rows[2])

	status := w.Status()
	assert.Equal(t, 2, status.Processed)
	assert.Equal(t, 0, status.Failed)
	assert.False(t, status.LastScan.IsZero())
	assert.Equal(t, 2, w.SeenCount())
}

func TestScanNow_SkipsUnchanged(t *testing.T) {
	w, in, _ := newTestWatcher(t, Options{})
	path := filepath.Join(in, "formd.txt")
	require.NoError(t, os.WriteFile(path, []byte(guideText), 0o644))

	require.Len(t, w.ScanNow(context.Background()), 1)
	assert.Empty(t, w.ScanNow(context.Background()))

	// Appending changes the size, so the file is picked up again
	require.NoError(t, os.WriteFile(path, []byte(guideText+"FILINGDATE Date filed DATE 11 No\n"), 0o644))
	results := w.ScanNow(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Records)

	w.ClearSeen()
	assert.Equal(t, 0, w.SeenCount())
	assert.Len(t, w.ScanNow(context.Background()), 1)
}

func TestScanNow_Failures(t *testing.T) {
	w, in, _ := newTestWatcher(t, Options{Format: export.FormatJSON})
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.pdf"), []byte("not really a pdf"), 0o644))

	results := w.ScanNow(context.Background())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, pipeline.ErrTextExtraction)

	status := w.Status()
	assert.Equal(t, 1, status.Failed)
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "broken.pdf")

	// Unchanged failures are not retried
	assert.Empty(t, w.ScanNow(context.Background()))
}

func TestStartStop(t *testing.T) {
	w, in, out := newTestWatcher(t, Options{Debounce: 20 * time.Millisecond, Format: export.FormatJSON})

	var mu sync.Mutex
	var seen []Result
	w.OnResult(func(r Result) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})

	// Present before start: handled by the initial scan
	require.NoError(t, os.WriteFile(filepath.Join(in, "first.txt"), []byte(guideText), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx))
	assert.True(t, w.Status().Running)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "first.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	// Dropped in while running: handled by the fsnotify event
	require.NoError(t, os.WriteFile(filepath.Join(in, "second.txt"), []byte(guideText), 0o644))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "second.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.Error(t, w.Stop())
	assert.False(t, w.Status().Running)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, len(seen), 2)
}

func TestIsGuide(t *testing.T) {
	assert.True(t, IsGuide("in/formd.pdf"))
	assert.True(t, IsGuide("in/FORMD.PDF"))
	assert.True(t, IsGuide("guide.txt"))
	assert.False(t, IsGuide("guide.md"))
	assert.False(t, IsGuide("in/.guide.pdf"))
	assert.False(t, IsGuide("in/guide.pdf.part"))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "formd.csv"), OutputPath("out", "in/formd.pdf", export.FormatCSV))
	assert.Equal(t, filepath.Join("out", "formd.db"), OutputPath("out", "formd.txt", export.FormatSQLite))
}
