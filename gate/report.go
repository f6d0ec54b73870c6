package gate

import (
	"encoding/json"
	"time"
)

// Result is the recorded outcome of one rule evaluation.
type Result struct {
	RuleID    string         `json:"rule_id"`
	Gate      Gate           `json:"gate"`
	Severity  Severity       `json:"severity"`
	Outcome   Outcome        `json:"outcome"`
	Message   string         `json:"message"`
	Evidence  map[string]any `json:"evidence,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Blocking reports whether the result fails its gate.
func (r Result) Blocking() bool {
	return r.Outcome == Fail && r.Severity == SeverityBlocking
}

// Verdict is the outcome of one gate.
type Verdict struct {
	Gate    Gate     `json:"gate"`
	Pass    bool     `json:"pass"`
	Results []Result `json:"results"`
}

// BlockingFailures returns the ids of rules that failed the gate.
func (v Verdict) BlockingFailures() []string {
	var out []string
	for _, r := range v.Results {
		if r.Blocking() {
			out = append(out, r.RuleID)
		}
	}
	return out
}

// Report is the outcome of validating one target across every gate.
type Report struct {
	RunID            string    `json:"run_id"`
	TargetID         string    `json:"target_id"`
	Timestamp        time.Time `json:"timestamp"`
	Gates            []Verdict `json:"gates"`
	OverallPass      bool      `json:"overall_pass"`
	BlockingFailures []string  `json:"blocking_failures"`
	// Cancelled is set when the run stopped before every gate was evaluated.
	Cancelled bool `json:"cancelled,omitempty"`
}

// JSON encodes the report.
func (r Report) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Verdict returns the verdict for g, if the report contains one.
func (r Report) Verdict(g Gate) (Verdict, bool) {
	for _, v := range r.Gates {
		if v.Gate == g {
			return v, true
		}
	}
	return Verdict{}, false
}

// NewVerdict aggregates the results of one gate. The gate passes unless a
// BLOCKING rule failed; WARNING failures and skips never fail it.
func NewVerdict(g Gate, results []Result) Verdict {
	v := Verdict{Gate: g, Pass: true, Results: results}
	if v.Results == nil {
		v.Results = []Result{}
	}
	for _, r := range results {
		if r.Blocking() {
			v.Pass = false
			break
		}
	}
	return v
}

// Aggregate builds a report from gate verdicts. An empty report passes.
func Aggregate(runID, targetID string, at time.Time, verdicts []Verdict) Report {
	rep := Report{
		RunID:            runID,
		TargetID:         targetID,
		Timestamp:        at,
		Gates:            verdicts,
		OverallPass:      true,
		BlockingFailures: []string{},
	}
	if rep.Gates == nil {
		rep.Gates = []Verdict{}
	}
	for _, v := range verdicts {
		if !v.Pass {
			rep.OverallPass = false
		}
		rep.BlockingFailures = append(rep.BlockingFailures, v.BlockingFailures()...)
	}
	return rep
}

// Identifier is implemented by targets that carry their own id.
type Identifier interface {
	TargetID() string
}

// TargetID extracts an id from a target: an Identifier, or a map with a
// "target_id" or "id" string entry. Other targets have no id.
func TargetID(target any) string {
	switch t := target.(type) {
	case Identifier:
		return t.TargetID()
	case map[string]any:
		for _, k := range []string{"target_id", "id"} {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
	case map[string]string:
		if s, ok := t["target_id"]; ok {
			return s
		}
		return t["id"]
	}
	return ""
}
