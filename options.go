package semgate

import (
	"log/slog"

	"github.com/zero-day-ai/semgate/config"
	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/memory"
)

// Option configures a Service.
type Option func(*serviceConfig)

type serviceConfig struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *graph.Store
	memory    memory.Collaborator
	observers []gate.Observer
	rules     []gate.Rule
}

// WithConfig sets the configuration the service is built from. The result of
// config.Default is used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(c *serviceConfig) {
		if cfg != nil {
			c.cfg = cfg
		}
	}
}

// WithLogger sets the logger shared by every component.
// If not provided, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

// WithStore uses an existing graph store instead of creating one. Built-in
// graphs are still loaded into it when the configuration asks for them.
func WithStore(store *graph.Store) Option {
	return func(c *serviceConfig) {
		c.store = store
	}
}

// WithMemory uses collaborator as the memory collaborator, overriding the
// configured backend. Calls are still bounded by memory.timeout.
func WithMemory(collaborator memory.Collaborator) Option {
	return func(c *serviceConfig) {
		c.memory = collaborator
	}
}

// WithObserver adds a gate observer, such as a metrics.Collector.
func WithObserver(o gate.Observer) Option {
	return func(c *serviceConfig) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithRules registers additional rules after the default and file rules.
func WithRules(rules ...gate.Rule) Option {
	return func(c *serviceConfig) {
		c.rules = append(c.rules, rules...)
	}
}
