package semgate

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/semgate/config"
	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/knowledge"
	"github.com/zero-day-ai/semgate/mapper"
	"github.com/zero-day-ai/semgate/memory"
	"github.com/zero-day-ai/semgate/rules"
	"github.com/zero-day-ai/semgate/semerr"
)

// Service wires a graph store, a mapper and a gate engine together with the
// configured memory collaborator and rule set.
type Service struct {
	store  *graph.Store
	mapper *mapper.Mapper
	engine *gate.Engine
	memory memory.Collaborator

	parallelism int
	logger      *slog.Logger
	closers     []io.Closer
}

// New builds a Service.
//
// Example:
//
//	svc, err := semgate.New(
//	    semgate.WithConfig(cfg),
//	    semgate.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	res := svc.Translate(ctx, "make the agents talk to each other", "autogen")
func New(opts ...Option) (*Service, error) {
	const op = "semgate.New"

	sc := &serviceConfig{cfg: config.Default()}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.logger == nil {
		sc.logger = slog.Default()
	}
	if err := config.Validate(sc.cfg); err != nil {
		return nil, err
	}
	cfg := sc.cfg

	s := &Service{
		store:       sc.store,
		parallelism: cfg.Gates.Parallelism,
		logger:      sc.logger,
	}
	if s.store == nil {
		s.store = graph.NewStore(graph.WithLogger(sc.logger))
	}
	if cfg.Graphs.Builtin {
		if err := knowledge.LoadAll(s.store); err != nil {
			return nil, semerr.Internal(op, fmt.Errorf("load built-in graphs: %w", err))
		}
	}

	mem, err := s.openMemory(cfg.Memory, sc.memory)
	if err != nil {
		return nil, err
	}
	s.memory = mem

	m, err := mapper.New(s.store,
		mapper.WithFuzzyThreshold(cfg.Mapper.FuzzyThreshold),
		mapper.WithPolicy(cfg.Mapper.Policy()),
		mapper.WithLogger(sc.logger),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.mapper = m

	engineOpts := []gate.Option{
		gate.WithLogger(sc.logger),
		gate.WithHistoryLimit(cfg.Gates.HistoryLimit),
		gate.WithDefaultTimeout(cfg.Gates.RuleTimeout),
		gate.WithResultTTL(cfg.Gates.ResultTTL),
	}
	if s.memory != nil {
		engineOpts = append(engineOpts, gate.WithSink(s.memory))
	}
	for _, o := range sc.observers {
		engineOpts = append(engineOpts, gate.WithObserver(o))
	}
	s.engine = gate.NewEngine(engineOpts...)

	if err := s.registerRules(cfg.Rules, sc.rules); err != nil {
		s.Close()
		return nil, err
	}

	sc.logger.Info("semgate ready",
		"frameworks", s.store.Frameworks(),
		"rules", len(s.engine.Rules(0)),
		"memory_backend", cfg.Memory.Backend)
	return s, nil
}

// openMemory returns the collaborator described by cfg, or override when set,
// wrapped in a per-call timeout. The "none" backend yields nil.
func (s *Service) openMemory(cfg config.MemoryConfig, override memory.Collaborator) (memory.Collaborator, error) {
	inner := override
	if inner == nil {
		switch cfg.Backend {
		case "none":
			return nil, nil
		case "redis":
			r, err := memory.NewRedis(memory.RedisOptions{URL: cfg.RedisURL, KeyPrefix: cfg.KeyPrefix})
			if err != nil {
				return nil, semerr.Network("semgate.New", err)
			}
			s.closers = append(s.closers, r)
			inner = r
		default:
			inner = memory.NewLocal()
		}
	}
	return memory.NewBounded(inner, cfg.Timeout), nil
}

func (s *Service) registerRules(cfg config.RulesConfig, extra []gate.Rule) error {
	var all []gate.Rule
	if cfg.Defaults {
		defs, err := rules.Defaults(rules.Deps{Mapper: s.mapper, Store: s.store, Memory: s.memory})
		if err != nil {
			return err
		}
		all = append(all, defs...)
	}
	if len(cfg.Files) > 0 {
		c, err := rules.NewCompiler()
		if err != nil {
			return err
		}
		fromFiles, err := rules.LoadFiles(c, cfg.Files...)
		if err != nil {
			return err
		}
		all = append(all, fromFiles...)
	}
	all = append(all, extra...)
	return rules.Register(s.engine, all...)
}

// Store returns the graph store.
func (s *Service) Store() *graph.Store { return s.store }

// Mapper returns the mapper.
func (s *Service) Mapper() *mapper.Mapper { return s.mapper }

// Engine returns the gate engine.
func (s *Service) Engine() *gate.Engine { return s.engine }

// Memory returns the bounded memory collaborator, or nil when disabled.
func (s *Service) Memory() memory.Collaborator { return s.memory }

// Translate maps intent to a concept of framework's graph.
func (s *Service) Translate(ctx context.Context, intent, framework string) mapper.Result {
	return s.mapper.Translate(ctx, intent, framework)
}

// Verify checks conceptID against its graph's schema.
func (s *Service) Verify(framework, conceptID string) (mapper.Verification, error) {
	return s.mapper.Verify(framework, conceptID)
}

// BuildBridge translates intent and resolves the grounded concept.
func (s *Service) BuildBridge(ctx context.Context, intent, framework string) (mapper.Bridge, error) {
	return s.mapper.BuildBridge(ctx, intent, framework)
}

// Validate runs every gate against target.
func (s *Service) Validate(ctx context.Context, target any, hints map[string]any) (gate.Report, error) {
	return s.engine.ValidateAll(ctx, target, hints)
}

// ValidateBatch validates targets concurrently, at most gates.parallelism at
// a time. Reports are returned in input order. When ctx is cancelled the
// remaining targets are not started, and the reports gathered so far are
// returned with the error; unstarted entries are zero Reports.
func (s *Service) ValidateBatch(ctx context.Context, targets []any, hints map[string]any) ([]gate.Report, error) {
	reports := make([]gate.Report, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, target := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := s.engine.ValidateAll(gctx, target, hints)
			reports[i] = rep
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	if err := ctx.Err(); err != nil {
		return reports, err
	}
	return reports, nil
}

// Close releases the memory backend connection, if any.
func (s *Service) Close() error {
	for _, c := range s.closers {
		semerr.CloseWithLog(c, s.logger, "memory backend")
	}
	s.closers = nil
	return nil
}
