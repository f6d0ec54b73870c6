package gate

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/semgate/semerr"
)

const instrumentationName = "github.com/zero-day-ai/semgate/gate"

type entry struct {
	rule  Rule
	state RuleState
}

// Engine is the rule registry and gate evaluator.
//
// Registry mutations are serialized by one lock. Every validation call
// copies the live rule set under a read lock when it starts and evaluates
// against that copy, so concurrent validations never block each other and
// never observe a half-applied mutation.
type Engine struct {
	mu      sync.RWMutex
	rules   map[string]*entry
	removed map[string]struct{}

	history        *History
	defaultTimeout time.Duration
	resultTTL      time.Duration
	observers      []Observer
	sink           Sink
	logger         *slog.Logger
	now            func() time.Time
	newRunID       func() string

	tracer  trace.Tracer
	meter   metric.Meter
	metrics *engineMetrics
}

// NewEngine returns an engine with no rules.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules:          make(map[string]*entry),
		removed:        make(map[string]struct{}),
		history:        NewHistory(DefaultHistoryLimit),
		defaultTimeout: DefaultRuleTimeout,
		resultTTL:      DefaultResultTTL,
		logger:         slog.Default(),
		now:            time.Now,
		newRunID:       func() string { return uuid.NewString() },
		tracer:         otel.Tracer(instrumentationName),
		meter:          otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	m, err := newEngineMetrics(e.meter)
	if err != nil {
		e.logger.Warn("gate metrics disabled", "error", err)
	}
	e.metrics = m
	return e
}

// AddRule registers a rule in the ENABLED state. It returns false without
// error if the id is already registered or was removed earlier; removed ids
// are never reused. It returns false and a dependency cycle error if the
// rule's dependencies would close a cycle among registered rules, leaving
// the registry unchanged.
//
// Empty Severity defaults to BLOCKING, empty OnTimeout to FAIL and a zero
// Priority to DefaultPriority.
func (e *Engine) AddRule(r Rule) (bool, error) {
	if r.Severity == "" {
		r.Severity = SeverityBlocking
	}
	if r.OnTimeout == "" {
		r.OnTimeout = Fail
	}
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	r.DependsOn = append([]string(nil), r.DependsOn...)
	if err := r.validate(); err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[r.ID]; ok {
		return false, nil
	}
	if _, ok := e.removed[r.ID]; ok {
		return false, nil
	}

	ids := make([]string, 0, len(e.rules)+1)
	for id := range e.rules {
		ids = append(ids, id)
	}
	ids = append(ids, r.ID)
	_, cyclic := topoSort(ids, func(id string) []string {
		if id == r.ID {
			return r.DependsOn
		}
		return e.rules[id].rule.DependsOn
	}, nil)
	if len(cyclic) > 0 {
		return false, semerr.Cycle("gate.AddRule", cyclic).WithContext(map[string]any{"rule_id": r.ID})
	}

	e.rules[r.ID] = &entry{rule: r, state: StateEnabled}
	e.logger.Debug("registered rule", "rule_id", r.ID, "gate", r.Gate.String(), "severity", r.Severity)
	return true, nil
}

// MustAddRule registers r and panics if it cannot be added.
func (e *Engine) MustAddRule(r Rule) {
	ok, err := e.AddRule(r)
	if err != nil {
		panic(err)
	}
	if !ok {
		panic(fmt.Sprintf("gate: rule %q already registered", r.ID))
	}
}

// RemoveRule moves a rule to REMOVED and reports whether it was registered.
// Removal is permanent. Rules depending on a removed rule are SKIPPED.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[id]; !ok {
		return false
	}
	delete(e.rules, id)
	e.removed[id] = struct{}{}
	return true
}

// EnableRule moves a DISABLED rule back to ENABLED.
func (e *Engine) EnableRule(id string) error {
	return e.setState("gate.EnableRule", id, StateEnabled)
}

// DisableRule moves a rule to DISABLED. Disabled rules evaluate as SKIPPED,
// and so do their dependents.
func (e *Engine) DisableRule(id string) error {
	return e.setState("gate.DisableRule", id, StateDisabled)
}

func (e *Engine) setState(op, id string, state RuleState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.rules[id]
	if !ok {
		return e.missingRule(op, id)
	}
	ent.state = state
	return nil
}

// EnableGate enables every rule currently registered in g.
func (e *Engine) EnableGate(g Gate) error {
	return e.setGateState("gate.EnableGate", g, StateEnabled)
}

// DisableGate disables every rule currently registered in g. Rules added to
// the gate later start enabled.
func (e *Engine) DisableGate(g Gate) error {
	return e.setGateState("gate.DisableGate", g, StateDisabled)
}

func (e *Engine) setGateState(op string, g Gate, state RuleState) error {
	if !g.Valid() {
		return semerr.InvalidGate(op, g.String())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ent := range e.rules {
		if ent.rule.Gate == g {
			ent.state = state
		}
	}
	return nil
}

// Rule describes a registered rule. Removed rules report StateRemoved.
func (e *Engine) Rule(id string) (RuleInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if ent, ok := e.rules[id]; ok {
		return ent.info(), true
	}
	if _, ok := e.removed[id]; ok {
		return RuleInfo{ID: id, State: StateRemoved}, true
	}
	return RuleInfo{}, false
}

// Rules lists registered rules by gate, then id. A zero gate lists all gates.
func (e *Engine) Rules(g Gate) []RuleInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]RuleInfo, 0, len(e.rules))
	for _, ent := range e.rules {
		if g == 0 || ent.rule.Gate == g {
			out = append(out, ent.info())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Gate != out[j].Gate {
			return out[i].Gate < out[j].Gate
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RecentResults returns up to limit of the newest results in history,
// oldest first. A zero gate matches all gates.
func (e *Engine) RecentResults(g Gate, limit int) []Result {
	return e.history.Recent(g, limit)
}

// Stats summarizes the results retained in history.
func (e *Engine) Stats() Stats {
	return e.history.Stats()
}

func (ent *entry) info() RuleInfo {
	return RuleInfo{
		ID:          ent.rule.ID,
		Gate:        ent.rule.Gate,
		Severity:    ent.rule.Severity,
		Description: ent.rule.Description,
		DependsOn:   append([]string(nil), ent.rule.DependsOn...),
		Priority:    ent.rule.Priority,
		State:       ent.state,
	}
}

// missingRule builds the not-found error for id. e.mu must be held.
func (e *Engine) missingRule(op, id string) error {
	if _, ok := e.removed[id]; ok {
		return &semerr.Error{
			Op:      op,
			Kind:    semerr.KindNotFound,
			Err:     fmt.Errorf("%w: %w", semerr.ErrNotFound, semerr.ErrRuleRemoved),
			Context: map[string]any{"rule_id": id},
		}
	}
	return semerr.NotFound(op, "rule_id", id)
}

// snapshot is an immutable copy of the registry taken at the start of a
// validation call.
type snapshot struct {
	rules map[string]entry
}

func (e *Engine) snapshot() *snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := &snapshot{rules: make(map[string]entry, len(e.rules))}
	for id, ent := range e.rules {
		s.rules[id] = *ent
	}
	return s
}

// gateOrder returns the ids of g's rules in dependency order, ties by
// priority and then id.
func (s *snapshot) gateOrder(g Gate) []string {
	var ids []string
	for id, ent := range s.rules {
		if ent.rule.Gate == g {
			ids = append(ids, id)
		}
	}
	order, cyclic := topoSort(ids,
		func(id string) []string { return s.rules[id].rule.DependsOn },
		func(id string) int { return s.rules[id].rule.Priority })
	// The registry rejects cycles, so cyclic is empty; order what is left by id.
	return append(order, cyclic...)
}
