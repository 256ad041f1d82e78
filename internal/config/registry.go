package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// registrySnapshot is never mutated after it is published.
type registrySnapshot struct {
	sources map[string]*Source
	files   map[string]string // path -> source name
}

// Registry holds the compiled source configurations.
// Readers get an immutable snapshot; reloads publish a new one (copy-on-write).
type Registry struct {
	snapshot atomic.Pointer[registrySnapshot]
	dir      string
	mu       sync.Mutex // serializes writers
}

// NewRegistry seeds the email and Slack presets and loads every config file in dir.
// An empty dir keeps only the presets.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{dir: dir}
	snap, err := r.loadAll()
	if err != nil {
		return nil, err
	}
	r.snapshot.Store(snap)
	return r, nil
}

// Get returns the compiled configuration for a source type.
func (r *Registry) Get(name string) (*Source, bool) {
	src, ok := r.snapshot.Load().sources[name]
	return src, ok
}

// Sources lists the registered source names in sorted order.
func (r *Registry) Sources() []string {
	snap := r.snapshot.Load()
	names := make([]string, 0, len(snap.sources))
	for name := range snap.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Put registers or replaces a compiled source.
func (r *Registry) Put(src *Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.snapshot.Load().copy()
	next.sources[src.Name] = src
	r.snapshot.Store(next)
}

// Reload re-reads the whole directory. On any error the current snapshot is kept.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, err := r.loadAll()
	if err != nil {
		return err
	}
	r.snapshot.Store(snap)
	return nil
}

// Watch reloads changed config files until ctx is cancelled.
// An invalid file is logged and the previous configuration for that source stays active.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return errors.New("registry has no config directory to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				r.handleEvent(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("dir", r.dir).Msg("Config watcher error")
			}
		}
	}()

	log.Info().Str("dir", r.dir).Msg("Watching source configs")
	return nil
}

func (r *Registry) handleEvent(event fsnotify.Event) {
	if _, ok := FormatForPath(event.Name); !ok {
		return
	}
	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		r.reloadFile(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		r.dropFile(event.Name)
	}
}

func (r *Registry) reloadFile(path string) {
	src, err := LoadSourceFile(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Rejected source config change, keeping previous")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.snapshot.Load().copy()
	if prev, ok := next.files[path]; ok && prev != src.Name {
		delete(next.files, path)
		next.revert(prev)
	}
	next.sources[src.Name] = src
	next.files[path] = src.Name
	r.snapshot.Store(next)
	log.Info().Str("source", src.Name).Str("file", path).Msg("Reloaded source config")
}

// dropFile reverts a removed file's source to its preset, or forgets it when no preset exists.
func (r *Registry) dropFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.snapshot.Load()
	name, ok := cur.files[path]
	if !ok {
		return
	}
	next := cur.copy()
	delete(next.files, path)
	next.revert(name)
	r.snapshot.Store(next)
	log.Info().Str("source", name).Str("file", path).Msg("Source config removed")
}

func (r *Registry) loadAll() (*registrySnapshot, error) {
	snap := &registrySnapshot{
		sources: presetSources(),
		files:   make(map[string]string),
	}
	if r.dir == "" {
		return snap, nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read config dir: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		if _, ok := FormatForPath(path); !ok {
			continue
		}
		src, err := LoadSourceFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		snap.sources[src.Name] = src
		snap.files[path] = src.Name
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return snap, nil
}

func (s *registrySnapshot) copy() *registrySnapshot {
	next := &registrySnapshot{
		sources: make(map[string]*Source, len(s.sources)),
		files:   make(map[string]string, len(s.files)),
	}
	for k, v := range s.sources {
		next.sources[k] = v
	}
	for k, v := range s.files {
		next.files[k] = v
	}
	return next
}

// presetSources compiles the built-in presets. They are valid by construction.
func presetSources() map[string]*Source {
	out := make(map[string]*Source, 2)
	for _, cfg := range []*SourceConfig{EmailSourceConfig(), SlackSourceConfig()} {
		src, err := cfg.Compile()
		if err != nil {
			panic(fmt.Sprintf("preset %s is invalid: %v", cfg.MessageType, err))
		}
		out[src.Name] = src
	}
	return out
}

// revert restores name to its preset, or forgets it when no preset exists.
func (s *registrySnapshot) revert(name string) {
	delete(s.sources, name)
	if preset, ok := presetSources()[name]; ok {
		s.sources[name] = preset
	}
}
