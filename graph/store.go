package graph

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zero-day-ai/semgate/semerr"
)

// ChangeKind describes how a framework's graph changed.
type ChangeKind string

const (
	ChangeLoaded  ChangeKind = "loaded"
	ChangeRemoved ChangeKind = "removed"
)

// Change is delivered to store listeners after a graph is installed or removed.
type Change struct {
	Framework string
	Kind      ChangeKind
	Version   string
}

// Store holds the current knowledge graph of every framework.
//
// Readers never block: the framework table is an immutable map published
// through an atomic pointer, and each write publishes a fresh copy. Writers
// are serialized by a mutex. A caller holding a *KnowledgeGraph keeps a
// consistent snapshot even while a reload installs a newer graph.
type Store struct {
	graphs atomic.Pointer[map[string]*KnowledgeGraph]

	mu        sync.Mutex
	listeners []func(Change)

	logger *slog.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for load and reload events.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp loaded graphs.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := map[string]*KnowledgeGraph{}
	s.graphs.Store(&empty)
	return s
}

// Load validates def and installs it as the graph for framework, replacing
// any previous graph. Load is atomic: on error nothing is installed and the
// previous graph, if any, keeps serving.
func (s *Store) Load(framework string, def *Definition) (*KnowledgeGraph, error) {
	return s.put(framework, def, false)
}

// Reload replaces the graph of an already-loaded framework. It returns a
// not-found error if the framework is not loaded when the new graph would be
// installed, and a graph load error if def is invalid; in both cases the
// store is unchanged.
func (s *Store) Reload(framework string, def *Definition) (*KnowledgeGraph, error) {
	key := FrameworkKey(framework)
	if _, ok := s.Lookup(key); !ok {
		return nil, semerr.NotFound("graph.Reload", "framework", key)
	}
	return s.put(key, def, true)
}

func (s *Store) put(framework string, def *Definition, replace bool) (*KnowledgeGraph, error) {
	key := FrameworkKey(framework)
	g, err := build(key, def, s.now())
	if err != nil {
		s.logger.Warn("rejected knowledge graph", "framework", key, "error", err)
		return nil, err
	}
	if !s.install(g, replace) {
		return nil, semerr.NotFound("graph.Reload", "framework", key)
	}
	s.logger.Info("loaded knowledge graph",
		"framework", key,
		"version", g.version,
		"concepts", len(g.concepts),
		"phrases", len(g.keys))
	return g, nil
}

// Get returns the current graph for framework.
func (s *Store) Get(framework string) (*KnowledgeGraph, error) {
	key := FrameworkKey(framework)
	g, ok := s.Lookup(key)
	if !ok {
		return nil, semerr.NotFound("graph.Get", "framework", key)
	}
	return g, nil
}

// Lookup returns the current graph for framework without allocating an error.
func (s *Store) Lookup(framework string) (*KnowledgeGraph, bool) {
	g, ok := (*s.graphs.Load())[FrameworkKey(framework)]
	return g, ok
}

// Has reports whether a graph is loaded for framework.
func (s *Store) Has(framework string) bool {
	_, ok := s.Lookup(framework)
	return ok
}

// Frameworks returns the loaded framework keys in sorted order.
func (s *Store) Frameworks() []string {
	m := *s.graphs.Load()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Remove unloads a framework and reports whether it was loaded.
func (s *Store) Remove(framework string) bool {
	key := FrameworkKey(framework)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.graphs.Load()
	if _, ok := cur[key]; !ok {
		return false
	}
	next := make(map[string]*KnowledgeGraph, len(cur))
	for k, v := range cur {
		if k != key {
			next[k] = v
		}
	}
	s.graphs.Store(&next)
	s.logger.Info("removed knowledge graph", "framework", key)
	s.notify(Change{Framework: key, Kind: ChangeRemoved})
	return true
}

// OnChange registers fn to be called after every install or removal.
// Listeners run synchronously on the writer's goroutine, in write order.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// install swaps g in. With replace set it installs only over an existing
// graph of the same framework and reports false when there is none.
func (s *Store) install(g *KnowledgeGraph, replace bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.graphs.Load()
	if _, ok := cur[g.framework]; replace && !ok {
		return false
	}
	next := make(map[string]*KnowledgeGraph, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[g.framework] = g
	s.graphs.Store(&next)
	s.notify(Change{Framework: g.framework, Kind: ChangeLoaded, Version: g.version})
	return true
}

// notify must be called with s.mu held.
func (s *Store) notify(c Change) {
	for _, fn := range s.listeners {
		fn(c)
	}
}
