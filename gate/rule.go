package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/zero-day-ai/semgate/semerr"
)

// DefaultRuleTimeout bounds a single predicate evaluation when a rule does
// not set its own timeout.
const DefaultRuleTimeout = 30 * time.Second

// Rule priorities range from MinPriority to MaxPriority. A zero priority is
// registered as DefaultPriority.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Predicate evaluates one rule against a target. A returned error, a panic
// or an invalid outcome is recorded as FAIL with the cause in the evidence.
// Predicates must not retain the Check after returning.
type Predicate func(ctx context.Context, c *Check) (Finding, error)

// Rule is a validation rule. Rules are registered with Engine.AddRule and
// referenced by ID afterwards.
type Rule struct {
	ID          string
	Gate        Gate
	Severity    Severity
	Description string
	// DependsOn lists rule ids that must PASS in the same run before
	// Predicate is invoked. Dependencies may live in other gates.
	DependsOn []string
	// Priority orders rules of one gate that are ready at the same time:
	// higher runs first. Dependencies always run before their dependents.
	Priority int
	// Timeout bounds the predicate. Zero means the engine default.
	Timeout time.Duration
	// OnTimeout is the outcome recorded when the predicate exceeds Timeout:
	// Fail (the default) or Skipped.
	OnTimeout Outcome
	Predicate Predicate
}

func (r Rule) validate() error {
	const op = "gate.AddRule"
	switch {
	case r.ID == "":
		return semerr.Validation(op, fmt.Errorf("rule id is empty"))
	case !r.Gate.Valid():
		return semerr.InvalidGate(op, r.Gate.String()).WithContext(map[string]any{"rule_id": r.ID})
	case r.Predicate == nil:
		return semerr.Validation(op, fmt.Errorf("rule %q has no predicate", r.ID))
	case r.Severity != SeverityBlocking && r.Severity != SeverityWarning:
		return semerr.Validation(op, fmt.Errorf("rule %q has unknown severity %q", r.ID, r.Severity))
	case r.OnTimeout != Fail && r.OnTimeout != Skipped:
		return semerr.Validation(op, fmt.Errorf("rule %q has invalid timeout outcome %q", r.ID, r.OnTimeout))
	case r.Timeout < 0:
		return semerr.Validation(op, fmt.Errorf("rule %q has negative timeout", r.ID))
	case r.Priority < MinPriority || r.Priority > MaxPriority:
		return semerr.Validation(op, fmt.Errorf("rule %q has priority %d outside [%d, %d]", r.ID, r.Priority, MinPriority, MaxPriority))
	}
	for _, dep := range r.DependsOn {
		if dep == r.ID {
			return semerr.Cycle(op, []string{r.ID})
		}
	}
	return nil
}

// RuleInfo describes a registered rule.
type RuleInfo struct {
	ID          string    `json:"id"`
	Gate        Gate      `json:"gate"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description,omitempty"`
	DependsOn   []string  `json:"depends_on,omitempty"`
	Priority    int       `json:"priority"`
	State       RuleState `json:"state"`
}

// Check is the input handed to a predicate.
type Check struct {
	RuleID string
	Gate   Gate
	// Target is the opaque configuration under validation.
	Target any
	// Context carries caller-supplied hints. It is shared between the
	// predicates of a run and must not be modified.
	Context map[string]any

	deps map[string]Result
}

// Dependency returns the result a declared dependency produced in this run.
func (c *Check) Dependency(id string) (Result, bool) {
	r, ok := c.deps[id]
	return r, ok
}

// Finding is what a predicate reports.
type Finding struct {
	Outcome  Outcome
	Message  string
	Evidence map[string]any
}

// Passed returns a PASS finding.
func Passed(msg string) Finding {
	return Finding{Outcome: Pass, Message: msg}
}

// Failed returns a FAIL finding with optional evidence.
func Failed(msg string, evidence map[string]any) Finding {
	return Finding{Outcome: Fail, Message: msg, Evidence: evidence}
}

// Skip returns a SKIPPED finding.
func Skip(msg string) Finding {
	return Finding{Outcome: Skipped, Message: msg}
}

// Failedf returns a FAIL finding with a formatted message.
func Failedf(format string, args ...any) Finding {
	return Finding{Outcome: Fail, Message: fmt.Sprintf(format, args...)}
}
