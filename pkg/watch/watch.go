// Package watch monitors an input directory for data guides and extracts
// each new or changed file into the output directory.
//
// Files are picked up from fsnotify events (debounced, since a PDF is
// usually written in several chunks) and from an optional cron-scheduled
// rescan that catches anything the event stream missed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/fieldmap/pkg/export"
	"github.com/coolbeans/fieldmap/pkg/fields"
	"github.com/coolbeans/fieldmap/pkg/logging"
	"github.com/coolbeans/fieldmap/pkg/pdftext"
	"github.com/coolbeans/fieldmap/pkg/pipeline"
)

// DefaultDebounce is how long a file must stay quiet before it is processed.
const DefaultDebounce = 500 * time.Millisecond

const maxRecentErrors = 10

// Options configures a Watcher.
type Options struct {
	InputDir  string
	OutputDir string
	Format    export.Format
	// Rescan is a cron expression; empty disables periodic rescans.
	Rescan   string
	Debounce time.Duration

	ProfileID string
	Parser    []fields.Option
	PDF       pdftext.Options
	NoCache   bool
}

// Result describes one processed file.
type Result struct {
	Source  string    `json:"source"`
	Output  string    `json:"output,omitempty"`
	Records int       `json:"records"`
	Err     error     `json:"-"`
	At      time.Time `json:"at"`
}

// Status summarizes watcher activity.
type Status struct {
	Running   bool      `json:"running"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	LastScan  time.Time `json:"last_scan,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher extracts guides dropped into a directory.
type Watcher struct {
	pipeline *pipeline.Pipeline
	opts     Options
	logger   *log.Logger

	seen   map[string]fileState
	seenMu sync.Mutex

	// processMu serializes extractions so an event and a rescan never
	// handle the same file concurrently. closed is guarded by it.
	processMu sync.Mutex
	closed    bool

	status   Status
	statusMu sync.RWMutex

	callbacks  []func(Result)
	callbackMu sync.RWMutex

	pending   map[string]*time.Timer
	pendingMu sync.Mutex

	fsw       *fsnotify.Watcher
	scheduler *cron.Cron
	stopChan  chan struct{}
	wg        sync.WaitGroup
	running   bool
	runningMu sync.Mutex
}

// New creates a watcher around p.
func New(p *pipeline.Pipeline, opts Options, logger *log.Logger) (*Watcher, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}
	if opts.InputDir == "" || opts.OutputDir == "" {
		return nil, errors.New("input and output directories are required")
	}
	if opts.Format == "" {
		opts.Format = export.FormatCSV
	}
	format, err := export.ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	opts.Format = format
	if opts.Format == export.FormatTable {
		return nil, fmt.Errorf("%w: table output cannot be written to a file", export.ErrUnknownFormat)
	}
	if opts.Rescan != "" {
		if _, err := cron.ParseStandard(opts.Rescan); err != nil {
			return nil, fmt.Errorf("invalid rescan schedule %q: %w", opts.Rescan, err)
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Watcher{
		pipeline: p,
		opts:     opts,
		logger:   logger,
		seen:     make(map[string]fileState),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// OnResult registers a callback invoked after each processed file.
func (w *Watcher) OnResult(callback func(Result)) {
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching. Files already present are processed by an
// initial scan.
func (w *Watcher) Start(ctx context.Context) error {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	if w.running {
		return fmt.Errorf("watcher is already running")
	}

	if err := os.MkdirAll(w.opts.InputDir, 0o755); err != nil {
		return fmt.Errorf("creating input directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(w.opts.InputDir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching directory %s: %w", w.opts.InputDir, err)
	}

	w.fsw = fsw
	w.stopChan = make(chan struct{})
	w.running = true

	w.processMu.Lock()
	w.closed = false
	w.processMu.Unlock()

	if w.opts.Rescan != "" {
		w.scheduler = cron.New()
		w.scheduler.AddFunc(w.opts.Rescan, func() {
			w.ScanNow(ctx)
		})
		w.scheduler.Start()
	}

	w.wg.Add(1)
	go w.loop(ctx, fsw, w.stopChan)

	w.setRunning(true)
	w.logger.Info().
		Str("input", w.opts.InputDir).
		Str("output", w.opts.OutputDir).
		Str("rescan", w.opts.Rescan).
		Msg("watching for data guides")
	return nil
}

// Stop stops watching and waits for in-flight work to finish.
func (w *Watcher) Stop() error {
	w.runningMu.Lock()
	if !w.running {
		w.runningMu.Unlock()
		return fmt.Errorf("watcher is not running")
	}
	w.running = false
	close(w.stopChan)
	w.fsw.Close()
	scheduler := w.scheduler
	w.scheduler = nil
	w.runningMu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	w.pendingMu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.pendingMu.Unlock()

	w.wg.Wait()

	// Wait out a debounced extraction already in progress
	w.processMu.Lock()
	w.closed = true
	w.processMu.Unlock()

	w.setRunning(false)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, stop <-chan struct{}) {
	defer w.wg.Done()

	w.ScanNow(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !IsGuide(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("input watcher error")
		}
	}
}

// schedule processes path once it has been quiet for the debounce period.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.pendingMu.Lock()
		delete(w.pending, path)
		w.pendingMu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if res, ok := w.processIfChanged(ctx, path); ok {
			w.notify(res)
		}
	})
}

// ScanNow processes every new or changed guide in the input directory and
// returns what it did, in file name order. A stopped watcher does nothing
// until it is started again.
func (w *Watcher) ScanNow(ctx context.Context) []Result {
	entries, err := os.ReadDir(w.opts.InputDir)
	if err != nil {
		w.recordError(fmt.Sprintf("scan: %v", err))
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsGuide(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var results []Result
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if res, ok := w.processIfChanged(ctx, filepath.Join(w.opts.InputDir, name)); ok {
			results = append(results, res)
			w.notify(res)
		}
	}

	w.statusMu.Lock()
	w.status.LastScan = time.Now()
	w.statusMu.Unlock()
	return results
}

// processIfChanged runs the pipeline unless path is unchanged since it was
// last processed.
func (w *Watcher) processIfChanged(ctx context.Context, path string) (Result, bool) {
	w.processMu.Lock()
	defer w.processMu.Unlock()
	if w.closed {
		return Result{}, false
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Result{}, false
	}
	state := fileState{modTime: info.ModTime(), size: info.Size()}

	w.seenMu.Lock()
	prev, ok := w.seen[path]
	w.seenMu.Unlock()
	if ok && prev == state {
		return Result{}, false
	}

	res := w.Process(ctx, path)

	// Failed files are marked too; a later write changes their state
	w.seenMu.Lock()
	w.seen[path] = state
	w.seenMu.Unlock()
	return res, true
}

// Process extracts one file and writes its records to the output
// directory. A guide yielding no records writes no file.
func (w *Watcher) Process(ctx context.Context, path string) Result {
	res := Result{Source: path, At: time.Now()}

	outcome, err := w.pipeline.Run(ctx, pipeline.Request{
		Source:    path,
		ProfileID: w.opts.ProfileID,
		Options:   w.opts.Parser,
		PDF:       w.opts.PDF,
		NoCache:   w.opts.NoCache,
	})
	if err != nil {
		res.Err = err
		w.fail(path, err)
		return res
	}
	res.Records = len(outcome.Records)

	if res.Records == 0 {
		w.logger.Warn().Str("source", path).Msg("no fields extracted; nothing written")
		w.succeed()
		return res
	}

	res.Output = OutputPath(w.opts.OutputDir, path, w.opts.Format)
	if err := export.WriteFile(res.Output, w.opts.Format, outcome.Records); err != nil {
		res.Err = err
		res.Output = ""
		w.fail(path, err)
		return res
	}

	w.logger.Info().
		Str("source", path).
		Str("output", res.Output).
		Int("records", res.Records).
		Msg("guide extracted")
	w.succeed()
	return res
}

// OutputPath names the output file for a source guide.
func OutputPath(outputDir, source string, format export.Format) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+format.Extension())
}

// IsGuide reports whether name looks like an input the watcher handles.
func IsGuide(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt":
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	return false
}

// Status returns a snapshot of watcher activity.
func (w *Watcher) Status() Status {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()
	s := w.status
	s.Errors = append([]string(nil), w.status.Errors...)
	return s
}

// SeenCount returns how many files have been processed at their current state.
func (w *Watcher) SeenCount() int {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	return len(w.seen)
}

// ClearSeen forgets processed files so the next scan handles them again.
func (w *Watcher) ClearSeen() {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	w.seen = make(map[string]fileState)
}

func (w *Watcher) notify(res Result) {
	w.callbackMu.RLock()
	defer w.callbackMu.RUnlock()
	for _, callback := range w.callbacks {
		callback(res)
	}
}

func (w *Watcher) succeed() {
	w.statusMu.Lock()
	w.status.Processed++
	w.statusMu.Unlock()
}

func (w *Watcher) fail(path string, err error) {
	w.logger.Error().Err(err).Str("source", path).Msg("guide extraction failed")
	w.statusMu.Lock()
	w.status.Failed++
	w.statusMu.Unlock()
	w.recordError(fmt.Sprintf("%s: %v", filepath.Base(path), err))
}

func (w *Watcher) recordError(msg string) {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	w.status.Errors = append(w.status.Errors, msg)
	if len(w.status.Errors) > maxRecentErrors {
		w.status.Errors = w.status.Errors[len(w.status.Errors)-maxRecentErrors:]
	}
}

func (w *Watcher) setRunning(running bool) {
	w.statusMu.Lock()
	w.status.Running = running
	w.statusMu.Unlock()
}
