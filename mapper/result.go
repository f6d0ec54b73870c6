package mapper

import (
	"github.com/zero-day-ai/semgate/graph"
)

// Status classifies a translation.
type Status string

const (
	StatusExact            Status = "EXACT_MATCH"
	StatusFuzzy            Status = "FUZZY_MATCH"
	StatusAmbiguous        Status = "AMBIGUOUS"
	StatusUnknownFramework Status = "UNKNOWN_FRAMEWORK"
)

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

// Candidate is one scored mapping key, reported for diagnostics.
type Candidate struct {
	Key          string  `json:"key"`
	ConceptID    string  `json:"concept_id"`
	Score        float64 `json:"score"`
	Intersection int     `json:"intersection"`
}

// Result is the outcome of translating an intent. ConceptID is set only for
// EXACT_MATCH and FUZZY_MATCH, and then always names a concept of the graph
// the translation ran against.
type Result struct {
	Framework    string      `json:"framework"`
	Intent       string      `json:"intent"`
	Normalized   string      `json:"normalized"`
	Status       Status      `json:"status"`
	ConceptID    string      `json:"concept_id,omitempty"`
	Key          string      `json:"key,omitempty"`
	Confidence   float64     `json:"confidence"`
	Candidates   []Candidate `json:"candidates,omitempty"`
	GraphVersion string      `json:"graph_version,omitempty"`
}

// Grounded reports whether the result resolved to a concept.
func (r Result) Grounded() bool {
	return r.Status == StatusExact || r.Status == StatusFuzzy
}

// Verification is the outcome of checking a concept against its graph schema.
type Verification struct {
	Framework     string   `json:"framework"`
	ConceptID     string   `json:"concept_id"`
	Type          string   `json:"type"`
	Valid         bool     `json:"valid"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// Bridge pairs a translation with the full concept it grounds to and the
// decision the confidence policy makes about it. Concept is nil when the
// translation is not grounded.
type Bridge struct {
	Result   Result         `json:"result"`
	Concept  *graph.Concept `json:"concept,omitempty"`
	Decision Decision       `json:"decision"`
}
