package graphsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/semerr"
)

// DefaultDebounce is how long Dir waits for a burst of file events to settle.
const DefaultDebounce = 250 * time.Millisecond

var extensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Dir reads definitions from the top level of a directory. A file's framework
// is the one it declares, or its base name when it declares none.
type Dir struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	known map[string]string // file path -> framework
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithDebounce sets the debounce window for Watch.
func WithDebounce(d time.Duration) DirOption {
	return func(s *Dir) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DirOption {
	return func(s *Dir) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewDir returns a source reading path.
func NewDir(path string, opts ...DirOption) *Dir {
	d := &Dir{
		path:     path,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		known:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the watched directory.
func (d *Dir) Path() string { return d.path }

// Load implements Source.
func (d *Dir) Load(ctx context.Context) (map[string]*graph.Definition, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, semerr.Configuration("graphsource.Dir.Load", err).WithContext(map[string]any{"dir": d.path})
	}

	defs := make(map[string]*graph.Definition)
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return defs, err
		}
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(d.path, e.Name())
		u := d.read(path)
		if u.Err != nil {
			errs = append(errs, u.Err)
			continue
		}
		if prev, dup := defs[u.Framework]; dup && prev != nil {
			errs = append(errs, semerr.GraphLoad("graphsource.Dir.Load", u.Framework,
				fmt.Sprintf("framework defined by more than one file, %s ignored", e.Name())))
			continue
		}
		defs[u.Framework] = u.Definition
	}
	return defs, errors.Join(errs...)
}

// read parses one file into an Update and records which framework it holds.
func (d *Dir) read(path string) Update {
	fw := frameworkFromFile(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return Update{Framework: fw, Err: err}
	}
	def, err := graph.ParseDefinition(data)
	if err != nil {
		return Update{Framework: fw, Err: withSource(err, map[string]any{"framework": fw, "file": filepath.Base(path)})}
	}
	if def.Framework != "" {
		fw = graph.FrameworkKey(def.Framework)
	}

	d.mu.Lock()
	d.known[path] = fw
	d.mu.Unlock()
	return Update{Framework: fw, Definition: def}
}

func frameworkFromFile(path string) string {
	base := filepath.Base(path)
	return graph.FrameworkKey(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Watch implements Source. Events are coalesced per file over the debounce
// window, so an editor's write-rename-chmod burst yields one update.
func (d *Dir) Watch(ctx context.Context) (<-chan Update, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, semerr.Internal("graphsource.Dir.Watch", err)
	}
	if err := w.Add(d.path); err != nil {
		_ = w.Close()
		return nil, semerr.Configuration("graphsource.Dir.Watch", err).WithContext(map[string]any{"dir": d.path})
	}

	out := make(chan Update, 16)
	go d.run(ctx, w, out)
	d.logger.Info("watching graph directory", "dir", d.path, "debounce", d.debounce)
	return out, nil
}

func (d *Dir) run(ctx context.Context, w *fsnotify.Watcher, out chan<- Update) {
	defer close(out)
	defer w.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(d.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !extensions[strings.ToLower(filepath.Ext(ev.Name))] || ev.Op == fsnotify.Chmod {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(d.debounce)
			}
			pending[ev.Name] = struct{}{}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			d.logger.Warn("graph directory watch error", "dir", d.path, "error", err)

		case <-timer.C:
			for _, u := range d.flush(pending) {
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
			pending = make(map[string]struct{})
		}
	}
}

// flush turns the pending paths into updates in path order.
func (d *Dir) flush(pending map[string]struct{}) []Update {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	updates := make([]Update, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			d.mu.Lock()
			fw, ok := d.known[path]
			delete(d.known, path)
			d.mu.Unlock()
			if !ok {
				fw = frameworkFromFile(path)
			}
			updates = append(updates, Update{Framework: fw})
			continue
		}
		updates = append(updates, d.read(path))
	}
	return updates
}
