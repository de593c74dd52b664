package profile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/phuslu/log"
	"gopkg.in/fsnotify.v1"
)

// Registry holds the profiles available to a run. Built-in profiles are
// always present; profiles loaded from a directory may override them.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	files    map[string]string // file path -> profile ID
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, p *Profile)
	logger   *log.Logger
}

// NewRegistry creates a registry holding the built-in profiles.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = &log.Logger{Writer: log.IOWriter{Writer: io.Discard}}
	}
	r := &Registry{
		profiles: make(map[string]*Profile),
		files:    make(map[string]string),
		logger:   logger,
	}
	r.registerBuiltins()
	return r
}

// NewRegistryWithDirectory creates a registry and loads profiles from dir.
func NewRegistryWithDirectory(dir string, logger *log.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) registerBuiltins() {
	for _, p := range Builtin() {
		// Built-ins are validated by tests; a failure here is a programming error
		if err := r.Register(p); err != nil {
			panic(fmt.Sprintf("builtin profile %s: %v", p.ID, err))
		}
	}
}

// Register validates, compiles and adds a profile, replacing any profile
// with the same ID.
func (r *Registry) Register(p *Profile) error {
	if p == nil {
		return fmt.Errorf("profile cannot be nil")
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	if !p.IsCompiled() {
		if err := p.Compile(); err != nil {
			return fmt.Errorf("compiling profile %q: %w", p.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[p.ID] = p
	if p.source != "" {
		r.files[p.source] = p.ID
	}
	return nil
}

// Unregister removes a profile from the registry.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	delete(r.profiles, id)
	return nil
}

// Get returns a profile by ID.
func (r *Registry) Get(id string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	return p, ok
}

// Lookup is Get with an error for unknown IDs. An empty ID selects the
// default profile.
func (r *Registry) Lookup(id string) (*Profile, error) {
	if id == "" {
		id = DefaultID
	}
	p, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return p, nil
}

// List returns all profiles sorted by ID.
func (r *Registry) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Dir returns the configured profile directory.
func (r *Registry) Dir() string {
	return r.dir
}

// LoadDirectory loads all YAML profile files from a directory. A missing
// directory is not an error.
func (r *Registry) LoadDirectory(dir string) error {
	r.dir = dir

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := r.LoadFile(path); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", entry.Name(), err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading profiles: %s", strings.Join(loadErrors, "; "))
	}
	return nil
}

// LoadFile loads a single profile file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return err
	}
	p.source = path

	if err := r.Register(p); err != nil {
		return fmt.Errorf("registering profile: %w", err)
	}
	return nil
}

// ValidateFile parses, validates and compiles a profile file without
// registering it.
func ValidateFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.source = path
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.Compile(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload drops every file-backed profile and loads the directory again.
func (r *Registry) Reload() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for reload")
	}

	r.mu.Lock()
	r.profiles = make(map[string]*Profile)
	r.files = make(map[string]string)
	r.mu.Unlock()

	r.registerBuiltins()
	return r.LoadDirectory(r.dir)
}

// SetOnChange sets a callback invoked after a watched file changes.
func (r *Registry) SetOnChange(fn func(event string, p *Profile)) {
	r.onChange = fn
}

// Watch starts watching the profile directory for changes.
func (r *Registry) Watch() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})

	go r.watchLoop(watcher, r.stopChan)

	if err := watcher.Add(r.dir); err != nil {
		r.watcher.Close()
		return fmt.Errorf("watching directory %s: %w", r.dir, err)
	}

	r.logger.Info().Str("dir", r.dir).Msg("watching profile directory")
	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isYAML(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")
			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")
			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				r.handleFileRemove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn().Err(err).Msg("profile watcher error")
		}
	}
}

func (r *Registry) handleFileChange(path, eventType string) {
	if err := r.LoadFile(path); err != nil {
		r.logger.Warn().Err(err).Str("file", path).Msg("profile reload failed")
		return
	}

	r.mu.RLock()
	id := r.files[path]
	p := r.profiles[id]
	r.mu.RUnlock()

	r.logger.Info().Str("file", path).Str("profile", id).Str("event", eventType).Msg("profile loaded")
	if r.onChange != nil {
		r.onChange(eventType, p)
	}
}

func (r *Registry) handleFileRemove(path string) {
	r.mu.Lock()
	id, ok := r.files[path]
	if ok {
		delete(r.files, path)
		delete(r.profiles, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	// A built-in with the same ID becomes visible again
	for _, b := range Builtin() {
		if b.ID == id {
			if err := r.Register(b); err != nil {
				r.logger.Warn().Err(err).Str("profile", id).Msg("restoring builtin profile failed")
			}
		}
	}

	r.logger.Info().Str("file", path).Str("profile", id).Msg("profile removed")
	if r.onChange != nil {
		r.onChange("remove", nil)
	}
}

// StopWatch stops watching the profile directory.
func (r *Registry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
