package graphsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/semerr"
)

// ErrWatchClosed is returned by Sync when a source stops its watch before
// the context is done.
var ErrWatchClosed = errors.New("graph source watch closed")

// Update reports a change to one framework's definition. Definition is nil
// when the framework was removed. Err is set when the new definition could
// not be read or parsed; the framework's current graph should be kept.
type Update struct {
	Framework  string
	Definition *graph.Definition
	Err        error
}

// Removed reports whether the update removes the framework.
func (u Update) Removed() bool {
	return u.Err == nil && u.Definition == nil
}

// withSource adds where a definition came from to a parse error.
func withSource(err error, where map[string]any) error {
	var se *semerr.Error
	if errors.As(err, &se) {
		return se.WithContext(where)
	}
	return err
}

// Source supplies knowledge graph definitions.
type Source interface {
	// Load returns every definition currently available, keyed by framework.
	// Definitions that fail to parse are left out of the map and reported in
	// the returned error; the others are still returned.
	Load(ctx context.Context) (map[string]*graph.Definition, error)

	// Watch streams changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Update, error)
}

// LoadInto loads every definition of src into store. A definition that fails
// to parse or validate is logged and skipped; the count of installed graphs
// is returned along with the joined problems.
func LoadInto(ctx context.Context, store *graph.Store, src Source, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defs, loadErr := src.Load(ctx)
	if loadErr != nil {
		logger.Warn("some graph definitions could not be read", "error", loadErr)
	}

	frameworks := make([]string, 0, len(defs))
	for fw := range defs {
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)

	errs := []error{loadErr}
	loaded := 0
	for _, fw := range frameworks {
		if _, err := store.Load(fw, defs[fw]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", fw, err))
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// Apply installs or removes one framework according to u.
func Apply(store *graph.Store, u Update, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case u.Err != nil:
		logger.Warn("ignoring unreadable graph definition", "framework", u.Framework, "error", u.Err)
		return u.Err
	case u.Definition == nil:
		store.Remove(u.Framework)
		return nil
	default:
		_, err := store.Load(u.Framework, u.Definition)
		return err
	}
}

// Sync loads src into store and then applies its updates until ctx is done
// or the watch ends. Bad definitions only affect their own framework.
func Sync(ctx context.Context, store *graph.Store, src Source, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	// Start watching first so changes made during the initial load are seen.
	updates, err := src.Watch(ctx)
	if err != nil {
		return err
	}
	n, _ := LoadInto(ctx, store, src, logger)
	logger.Info("graph source synced", "frameworks", n)

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrWatchClosed
			}
			_ = Apply(store, u, logger)
		}
	}
}
