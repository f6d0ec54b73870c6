// Package semerr defines the error taxonomy shared by every semgate package.
//
// Callers match failures with errors.Is against the sentinel errors, or
// against an *Error carrying only a Kind:
//
//	if errors.Is(err, semerr.ErrGraphLoad) { ... }
//	if errors.Is(err, &semerr.Error{Kind: semerr.KindNotFound}) { ... }
package semerr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Sentinel errors for the failure classes semgate reports.
var (
	// ErrGraphLoad indicates a knowledge graph definition was rejected.
	// The previously loaded graph for the framework, if any, stays in service.
	ErrGraphLoad = errors.New("graph load failed")

	// ErrNotFound indicates a framework, concept or rule is not registered.
	ErrNotFound = errors.New("not found")

	// ErrDependencyCycle indicates that registering a rule would close a
	// cycle in the rule dependency graph.
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrConceptNotFound indicates a mapping resolved to a concept id that no
	// longer exists in the current graph snapshot.
	ErrConceptNotFound = errors.New("concept not found")

	// ErrTimeout indicates a collaborator call exceeded its budget.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidGate indicates a gate name outside the six known gates.
	ErrInvalidGate = errors.New("invalid gate")

	// ErrRuleRemoved indicates an operation on a rule that was removed.
	ErrRuleRemoved = errors.New("rule removed")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize errors by their type.
const (
	KindGraphLoad     = "graph_load"
	KindNotFound      = "not_found"
	KindCycle         = "dependency_cycle"
	KindValidation    = "validation"
	KindConfiguration = "configuration"
	KindNetwork       = "network"
	KindTimeout       = "timeout"
	KindInternal      = "internal"
)

// Error wraps an underlying error with the operation that failed and the
// category of the failure.
type Error struct {
	// Op is the operation that failed, e.g. "graph.Load" or "gate.AddRule".
	Op string

	// Kind categorizes the error (KindNotFound, KindGraphLoad, ...).
	Kind string

	// Err is the underlying error.
	Err error

	// Context carries identifiers useful when debugging: framework, rule id,
	// concept id, offending fields.
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("semgate: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("semgate: %s (%s): %v [%s]", e.Op, e.Kind, e.Err, formatContext(e.Context))
	}
	return fmt.Sprintf("semgate: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind (and Op when the target sets one), and
// otherwise delegates to the wrapped error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the given entries merged into
// its context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	out := *e
	out.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		out.Context[k] = v
	}
	for k, v := range ctx {
		out.Context[k] = v
	}
	return &out
}

// formatContext renders context entries in key order so messages are stable.
func formatContext(ctx map[string]any) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ctx[k]))
	}
	return strings.Join(parts, " ")
}

// GraphLoad returns a KindGraphLoad error for the framework. Each problem is
// recorded in the error context under "problems".
func GraphLoad(op, framework string, problems ...string) *Error {
	e := &Error{Op: op, Kind: KindGraphLoad, Err: ErrGraphLoad, Context: map[string]any{"framework": framework}}
	if len(problems) > 0 {
		e.Context["problems"] = strings.Join(problems, "; ")
	}
	return e
}

// NotFound returns a KindNotFound error describing what was missing.
func NotFound(op, what, id string) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: ErrNotFound, Context: map[string]any{what: id}}
}

// Cycle returns a KindCycle error naming the rules that could not be ordered.
func Cycle(op string, ruleIDs []string) *Error {
	return &Error{Op: op, Kind: KindCycle, Err: ErrDependencyCycle, Context: map[string]any{"rules": strings.Join(ruleIDs, ",")}}
}

// ConceptNotFound returns an error for a mapped concept id that failed to resolve.
func ConceptNotFound(op, framework, conceptID string) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: ErrConceptNotFound, Context: map[string]any{"framework": framework, "concept_id": conceptID}}
}

// Timeout returns a KindTimeout error wrapping cause.
func Timeout(op string, cause error) *Error {
	if cause == nil {
		cause = ErrTimeout
	} else {
		cause = fmt.Errorf("%w: %w", ErrTimeout, cause)
	}
	return &Error{Op: op, Kind: KindTimeout, Err: cause}
}

// InvalidGate returns a KindValidation error for an unknown gate name.
func InvalidGate(op, gate string) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: ErrInvalidGate, Context: map[string]any{"gate": gate}}
}

// Validation returns a KindValidation error wrapping err.
func Validation(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// Configuration returns a KindConfiguration error wrapping err.
func Configuration(op string, err error) *Error {
	if err == nil {
		err = ErrInvalidConfig
	} else if !errors.Is(err, ErrInvalidConfig) {
		err = fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// Network returns a KindNetwork error wrapping err.
func Network(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNetwork, Err: err}
}

// Internal returns a KindInternal error wrapping err.
func Internal(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog closes the resource and logs any error at warning level.
// A nil closer is ignored; a nil logger falls back to slog.Default().
//
//	defer semerr.CloseWithLog(client, logger, "redis client")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
