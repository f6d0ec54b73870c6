package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/semerr"
)

// ExprRule describes a rule whose predicate is a CEL expression over the
// variables target (the configuration under validation) and context (the run
// hints). The expression must evaluate to a bool: true is PASS, false is FAIL
// with Message.
type ExprRule struct {
	ID          string        `yaml:"id" json:"id"`
	Gate        string        `yaml:"gate" json:"gate"`
	Severity    string        `yaml:"severity,omitempty" json:"severity,omitempty"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	DependsOn   []string      `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Priority    int           `yaml:"priority,omitempty" json:"priority,omitempty"`
	Expression  string        `yaml:"expression" json:"expression"`
	Message     string        `yaml:"message,omitempty" json:"message,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Compiler turns ExprRules into gate rules. It is safe for concurrent use.
type Compiler struct {
	env *cel.Env
}

// NewCompiler returns a compiler with the target and context variables
// declared.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("target", cel.DynType),
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, semerr.Internal("rules.NewCompiler", err)
	}
	return &Compiler{env: env}, nil
}

// Compile checks def and returns the rule it describes.
func (c *Compiler) Compile(def ExprRule) (gate.Rule, error) {
	const op = "rules.Compile"
	if def.ID == "" {
		return gate.Rule{}, semerr.Validation(op, fmt.Errorf("expression rule has no id"))
	}
	g, err := gate.ParseGate(def.Gate)
	if err != nil {
		return gate.Rule{}, semerr.InvalidGate(op, def.Gate).WithContext(map[string]any{"rule_id": def.ID})
	}
	sev, err := gate.ParseSeverity(def.Severity)
	if err != nil {
		return gate.Rule{}, semerr.Validation(op, fmt.Errorf("rule %q: %w", def.ID, err))
	}
	if def.Expression == "" {
		return gate.Rule{}, semerr.Validation(op, fmt.Errorf("rule %q has no expression", def.ID))
	}

	ast, iss := c.env.Compile(def.Expression)
	if iss != nil && iss.Err() != nil {
		return gate.Rule{}, semerr.Validation(op, fmt.Errorf("rule %q: %w", def.ID, iss.Err()))
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return gate.Rule{}, semerr.Validation(op, fmt.Errorf("rule %q: expression yields %s, want bool", def.ID, out))
	}
	prg, err := c.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return gate.Rule{}, semerr.Validation(op, fmt.Errorf("rule %q: %w", def.ID, err))
	}

	msg := def.Message
	if msg == "" {
		msg = fmt.Sprintf("expression %q evaluated to false", def.Expression)
	}
	return gate.Rule{
		ID:          def.ID,
		Gate:        g,
		Severity:    sev,
		Description: def.Description,
		DependsOn:   def.DependsOn,
		Priority:    def.Priority,
		Timeout:     def.Timeout,
		Predicate: func(ctx context.Context, chk *gate.Check) (gate.Finding, error) {
			hints := chk.Context
			if hints == nil {
				hints = map[string]any{}
			}
			out, _, err := prg.ContextEval(ctx, map[string]any{
				"target":  asValue(chk.Target),
				"context": hints,
			})
			if err != nil {
				return gate.Finding{}, fmt.Errorf("evaluate %s: %w", def.ID, err)
			}
			pass, ok := out.Value().(bool)
			if !ok {
				return gate.Failed("expression did not yield a bool", map[string]any{
					"expression": def.Expression,
					"result":     fmt.Sprint(out.Value()),
				}), nil
			}
			if !pass {
				return gate.Failed(msg, map[string]any{"expression": def.Expression}), nil
			}
			return gate.Passed("expression held"), nil
		},
	}, nil
}
