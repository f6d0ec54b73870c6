package gate

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/semgate/semerr"
)

// Gate is a validation category. Gates are evaluated in the order of the
// constants below.
type Gate int

const (
	Technical Gate = iota + 1
	Behavioral
	Semantic
	Integration
	Performance
	Vision
)

var gateNames = [...]string{
	Technical:   "technical",
	Behavioral:  "behavioral",
	Semantic:    "semantic",
	Integration: "integration",
	Performance: "performance",
	Vision:      "vision",
}

// Gates returns every gate in canonical evaluation order.
func Gates() []Gate {
	return []Gate{Technical, Behavioral, Semantic, Integration, Performance, Vision}
}

// Valid reports whether g is one of the six gates.
func (g Gate) Valid() bool {
	return g >= Technical && g <= Vision
}

// String returns the lower-case gate name.
func (g Gate) String() string {
	if !g.Valid() {
		return fmt.Sprintf("gate(%d)", int(g))
	}
	return gateNames[g]
}

// ParseGate parses a gate name, ignoring case and surrounding space.
func ParseGate(s string) (Gate, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, g := range Gates() {
		if gateNames[g] == name {
			return g, nil
		}
	}
	return 0, semerr.InvalidGate("gate.ParseGate", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g Gate) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, semerr.InvalidGate("gate.MarshalText", g.String())
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gate) UnmarshalText(text []byte) error {
	parsed, err := ParseGate(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Severity decides whether a failing rule fails its gate.
type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityWarning  Severity = "WARNING"
)

// ParseSeverity parses a severity name, ignoring case. An empty string is BLOCKING.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(SeverityBlocking):
		return SeverityBlocking, nil
	case string(SeverityWarning):
		return SeverityWarning, nil
	default:
		return "", semerr.Validation("gate.ParseSeverity", fmt.Errorf("unknown severity %q", s))
	}
}

// Outcome is the result of evaluating one rule.
type Outcome string

const (
	Pass    Outcome = "PASS"
	Fail    Outcome = "FAIL"
	Skipped Outcome = "SKIPPED"
)

func (o Outcome) valid() bool {
	return o == Pass || o == Fail || o == Skipped
}

// RuleState is the lifecycle state of a registered rule. A rule never
// leaves Removed.
type RuleState string

const (
	StateEnabled  RuleState = "ENABLED"
	StateDisabled RuleState = "DISABLED"
	StateRemoved  RuleState = "REMOVED"
)
