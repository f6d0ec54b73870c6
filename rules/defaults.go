package rules

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/mapper"
	"github.com/zero-day-ai/semgate/memory"
	"github.com/zero-day-ai/semgate/semerr"
)

// Default rule ids.
const (
	TechInfrastructure   = "tech_infrastructure_check"
	TechImplementation   = "tech_implementation_check"
	BehaviorConsistency  = "behavior_consistency_check"
	MethodologyAdherence = "methodology_adherence_check"
	SemanticMapping      = "semantic_mapping_check"
	OntologicalVerify    = "ontological_verification"
	CrossPillar          = "cross_pillar_integration_check"
	PerformanceMetrics   = "performance_metrics_check"
	VisionAlignment      = "vision_alignment_check"
)

const (
	heartbeatKey          = "semgate:heartbeat"
	heartbeatTTLSeconds   = 60
	minComplianceScore    = 0.7
	minUptimePercent      = 99.0
	maxResponseTimeMillis = 500.0
	maxErrorRatePercent   = 1.0
	maxCPUPercent         = 80.0
	maxMemoryPercent      = 85.0
	minPillars            = 2
)

// Deps are the collaborators the default rules consult.
type Deps struct {
	// Mapper grounds user intents for the semantic gate. Required.
	Mapper *mapper.Mapper
	// Store, when set, lets the infrastructure check report an empty
	// knowledge graph store.
	Store *graph.Store
	// Memory, when set, is probed by the infrastructure check.
	Memory memory.Collaborator
}

// Defaults returns the default rule set covering all six gates.
func Defaults(deps Deps) ([]gate.Rule, error) {
	if deps.Mapper == nil {
		return nil, semerr.Configuration("rules.Defaults", errors.New("mapper is required"))
	}
	return []gate.Rule{
		{
			ID:          TechInfrastructure,
			Gate:        gate.Technical,
			Priority:    8,
			Description: "Check technical infrastructure health",
			Predicate:   deps.checkInfrastructure,
		},
		{
			ID:          TechImplementation,
			Gate:        gate.Technical,
			Priority:    7,
			Description: "Validate technical implementation",
			DependsOn:   []string{TechInfrastructure},
			Predicate:   checkImplementation,
		},
		{
			ID:          BehaviorConsistency,
			Gate:        gate.Behavioral,
			Priority:    9,
			Description: "Check behavioral consistency",
			Predicate:   checkConsistency,
		},
		{
			ID:          MethodologyAdherence,
			Gate:        gate.Behavioral,
			Priority:    8,
			Description: "Validate methodology adherence",
			DependsOn:   []string{BehaviorConsistency},
			Predicate:   checkMethodology,
		},
		{
			ID:          SemanticMapping,
			Gate:        gate.Semantic,
			Priority:    9,
			Description: "Validate semantic mapping accuracy",
			Predicate:   deps.checkMapping,
		},
		{
			ID:          OntologicalVerify,
			Gate:        gate.Semantic,
			Priority:    8,
			Description: "Verify ontological correctness",
			DependsOn:   []string{SemanticMapping},
			Predicate:   deps.checkOntology,
		},
		{
			ID:          CrossPillar,
			Gate:        gate.Integration,
			Priority:    10,
			Description: "Validate cross-pillar integration",
			Predicate:   checkCrossPillar,
		},
		{
			ID:          PerformanceMetrics,
			Gate:        gate.Performance,
			Priority:    7,
			Severity:    gate.SeverityWarning,
			Description: "Validate performance metrics",
			Predicate:   checkPerformance,
		},
		{
			ID:          VisionAlignment,
			Gate:        gate.Vision,
			Priority:    6,
			Severity:    gate.SeverityWarning,
			Description: "Validate alignment with project vision",
			Predicate:   checkVision,
		},
	}, nil
}

// Register adds rules to e in order. A rule id that is already registered,
// or was removed earlier, is an error.
func Register(e *gate.Engine, rules ...gate.Rule) error {
	for _, r := range rules {
		added, err := e.AddRule(r)
		if err != nil {
			return err
		}
		if !added {
			return semerr.Validation("rules.Register", fmt.Errorf("rule %q is already registered", r.ID))
		}
	}
	return nil
}

// outcome turns collected issues into a finding. status is reported under
// "<name>_status" as ok or bad.
func outcome(label, name, ok, bad string, issues []string, extra map[string]any) gate.Finding {
	ev := map[string]any{name + "_status": ok}
	for k, v := range extra {
		ev[k] = v
	}
	if len(issues) == 0 {
		return gate.Finding{Outcome: gate.Pass, Message: label + " validation passed", Evidence: ev}
	}
	ev[name+"_status"] = bad
	ev["issues"] = issues
	return gate.Finding{
		Outcome:  gate.Fail,
		Message:  fmt.Sprintf("%s validation failed with %d issue(s)", label, len(issues)),
		Evidence: ev,
	}
}

func (d Deps) checkInfrastructure(ctx context.Context, c *gate.Check) (gate.Finding, error) {
	var issues []string
	for _, e := range stringList(c.Context["system_errors"]) {
		issues = append(issues, "system error: "+e)
	}
	if d.Store != nil && len(d.Store.Frameworks()) == 0 {
		issues = append(issues, "no knowledge graphs loaded")
	}
	var extra map[string]any
	if d.Memory != nil {
		ok, err := d.Memory.Store(ctx, heartbeatKey, c.RuleID, heartbeatTTLSeconds)
		switch {
		case errors.Is(err, semerr.ErrTimeout):
			issues = append(issues, "memory collaborator timed out: "+err.Error())
			extra = map[string]any{"timeout": true, "collaborator": "memory"}
		case err != nil:
			issues = append(issues, "memory collaborator unreachable: "+err.Error())
		case !ok:
			issues = append(issues, "memory collaborator rejected heartbeat")
		}
	}
	return outcome("Technical infrastructure", "infrastructure", "healthy", "unhealthy", issues, extra), nil
}

func checkImplementation(_ context.Context, c *gate.Check) (gate.Finding, error) {
	if c.Target == nil {
		return gate.Passed("no implementation to validate"), nil
	}
	t, ok := asObject(c.Target)
	if !ok {
		return gate.Passed("target carries no implementation attributes"), nil
	}

	var issues []string
	if m := obj(t, "required_methodology"); m != nil {
		if len(list(m, "steps")) == 0 {
			issues = append(issues, "methodology defines no steps")
		}
		required := list(m, "validation_gates")
		if len(required) == 0 {
			issues = append(issues, "methodology defines no validation gates")
		}
		passed := list(t, "passed_validation_gates")
		for _, g := range required {
			if !contains(passed, g) {
				issues = append(issues, fmt.Sprintf("required validation gate %v not passed", g))
			}
		}
	}
	for _, attr := range []string{"timestamp", "validation_results"} {
		if !has(t, attr) {
			issues = append(issues, "missing required attribute: "+attr)
		}
	}
	return outcome("Technical implementation", "implementation", "valid", "invalid", issues, nil), nil
}

func checkConsistency(_ context.Context, c *gate.Check) (gate.Finding, error) {
	t, ok := asObject(c.Target)
	if !ok {
		return gate.Passed("no behavior to compare"), nil
	}

	var issues []string
	if responses := list(t, "responses"); len(responses) > 1 {
		first, _ := responses[0].(map[string]any)
		for i, r := range responses[1:] {
			rm, _ := r.(map[string]any)
			if rm == nil || first == nil {
				issues = append(issues, fmt.Sprintf("response %d is not an object", i+1))
				continue
			}
			for _, field := range []string{"type", "format"} {
				if !reflect.DeepEqual(rm[field], first[field]) {
					issues = append(issues, fmt.Sprintf("response %d %s %v differs from %v", i+1, field, rm[field], first[field]))
				}
			}
		}
	}
	if m := obj(t, "required_methodology"); m != nil {
		performed := list(t, "performed_steps")
		for _, step := range list(m, "steps") {
			if !contains(performed, step) {
				issues = append(issues, fmt.Sprintf("required step %v not performed", step))
			}
		}
	}
	if expected := list(t, "expected_behavioral_patterns"); len(expected) > 0 {
		observed := list(t, "observed_patterns")
		for _, p := range expected {
			if !contains(observed, p) {
				issues = append(issues, fmt.Sprintf("expected behavioral pattern %v not observed", p))
			}
		}
	}
	return outcome("Behavioral consistency", "consistency", "consistent", "inconsistent", issues, nil), nil
}

func checkMethodology(_ context.Context, c *gate.Check) (gate.Finding, error) {
	t, ok := asObject(c.Target)
	if !ok {
		return gate.Passed("no methodology to validate"), nil
	}

	var issues []string
	if m := obj(t, "required_methodology"); m != nil {
		performed := list(t, "performed_steps")
		for _, step := range list(m, "steps") {
			if !contains(performed, step) {
				issues = append(issues, fmt.Sprintf("missing methodology step: %v", step))
			}
		}
		passed := list(t, "passed_validation_gates")
		for _, g := range list(m, "validation_gates") {
			if !contains(passed, g) {
				issues = append(issues, fmt.Sprintf("missing validation gate: %v", g))
			}
		}
	}
	extra := map[string]any{}
	if v, present := t["methodology_compliance_score"]; present {
		score, isNum := number(v)
		switch {
		case !isNum:
			issues = append(issues, fmt.Sprintf("methodology compliance score %v is not a number", v))
		case score < minComplianceScore:
			issues = append(issues, fmt.Sprintf("methodology compliance score %.2f below %.2f", score, minComplianceScore))
		}
		extra["compliance_score"] = v
	}
	return outcome("Methodology adherence", "methodology", "adherent", "non_adherent", issues, extra), nil
}

// framework returns the framework a semantic check should ground against:
// the target's target_framework, then the run hint of the same name.
func framework(t map[string]any, hints map[string]any) string {
	if fw := str(t, "target_framework"); fw != "" {
		return fw
	}
	fw, _ := hints["target_framework"].(string)
	return fw
}

func (d Deps) checkMapping(ctx context.Context, c *gate.Check) (gate.Finding, error) {
	if c.Target == nil {
		return gate.Passed("no semantic mapping to validate"), nil
	}
	t, ok := asObject(c.Target)
	if !ok {
		return gate.Failedf("target is not a configuration object"), nil
	}

	var issues []string
	intent, expected, fw := str(t, "user_intent"), str(t, "expected_concept"), framework(t, c.Context)
	if intent == "" {
		issues = append(issues, "missing user_intent")
	}
	if expected == "" {
		issues = append(issues, "missing expected_concept")
	}
	if fw == "" {
		issues = append(issues, "missing target_framework")
	}
	if len(issues) > 0 {
		return outcome("Semantic mapping", "mapping", "accurate", "inaccurate", issues, nil), nil
	}

	res := d.Mapper.Translate(ctx, intent, fw)
	decision := d.Mapper.Policy().Decide(res)
	extra := map[string]any{
		"status":     string(res.Status),
		"confidence": res.Confidence,
		"decision":   string(decision),
	}
	if res.ConceptID != "" {
		extra["concept_id"] = res.ConceptID
	}
	if len(res.Candidates) > 0 {
		extra["candidates"] = res.Candidates
	}
	switch {
	case !res.Grounded():
		issues = append(issues, fmt.Sprintf("intent %q is %s for framework %q", intent, res.Status, fw))
	case res.ConceptID != expected:
		issues = append(issues, fmt.Sprintf("intent %q grounds to %q, expected %q", intent, res.ConceptID, expected))
	case decision == mapper.DecisionReject:
		issues = append(issues, fmt.Sprintf("confidence %.2f below escalation threshold", res.Confidence))
	}
	return outcome("Semantic mapping", "mapping", "accurate", "inaccurate", issues, extra), nil
}

func (d Deps) checkOntology(_ context.Context, c *gate.Check) (gate.Finding, error) {
	if c.Target == nil {
		return gate.Passed("no ontology to verify"), nil
	}
	t, ok := asObject(c.Target)
	if !ok {
		return gate.Failedf("target is not a configuration object"), nil
	}

	var issues []string
	for _, key := range []string{"user_intent", "target_framework", "expected_concept"} {
		if !has(t, key) {
			issues = append(issues, "missing required key: "+key)
		}
	}
	fw, id := framework(t, c.Context), str(t, "expected_concept")
	extra := map[string]any{}
	if fw != "" && id != "" {
		v, err := d.Mapper.Verify(fw, id)
		switch {
		case err != nil:
			issues = append(issues, err.Error())
		case !v.Valid:
			issues = append(issues, fmt.Sprintf("concept %q is missing fields %s", id, strings.Join(v.MissingFields, ", ")))
		}
		if err == nil {
			extra["concept_type"] = v.Type
		}
	}
	return outcome("Ontological verification", "ontology", "verified", "unverified", issues, extra), nil
}

var pillarKeys = map[string][]string{
	"technical":  {"infrastructure", "validation_tests", "sre_metrics"},
	"behavioral": {"behavioral_consistency", "methodology_adherence", "cognitive_patterns"},
	"semantic":   {"semantic_bridge", "mapping_validation", "hallucination_prevention"},
}

func checkCrossPillar(_ context.Context, c *gate.Check) (gate.Finding, error) {
	t, ok := asObject(c.Target)
	if !ok {
		return gate.Passed("no integration data to validate"), nil
	}

	var issues []string
	var present []string
	for _, pillar := range []string{"technical", "behavioral", "semantic"} {
		if has(t, pillarKeys[pillar]...) {
			present = append(present, pillar)
		}
	}
	if len(present) < minPillars {
		issues = append(issues, fmt.Sprintf("insufficient pillar coverage: %d of %d pillars present", len(present), minPillars))
	}
	if !has(t, "cross_pillar_validation") {
		issues = append(issues, "missing cross_pillar_validation")
	}
	if v, present := t["integration_score"]; !present {
		issues = append(issues, "missing integration_score")
	} else if score, isNum := number(v); !isNum || score < 0 || score > 1 {
		issues = append(issues, fmt.Sprintf("invalid integration_score %v", v))
	}
	return outcome("Cross-pillar integration", "integration", "integrated", "fragmented", issues,
		map[string]any{"pillars": present}), nil
}

func checkPerformance(_ context.Context, c *gate.Check) (gate.Finding, error) {
	t, ok := asObject(c.Target)
	if !ok {
		return gate.Passed("no performance metrics to validate"), nil
	}

	var issues []string
	if rel := obj(obj(t, "sre_metrics"), "reliability_metrics"); rel != nil {
		limit := func(key, unit string, bound float64, atLeast bool) {
			v, present := rel[key]
			if !present {
				return
			}
			n, err := quantity(v, unit)
			switch {
			case err != nil:
				issues = append(issues, fmt.Sprintf("invalid %s format: %v", key, v))
			case atLeast && n < bound:
				issues = append(issues, fmt.Sprintf("%s %.2f%s below %.2f%s", key, n, unit, bound, unit))
			case !atLeast && n > bound:
				issues = append(issues, fmt.Sprintf("%s %.2f%s above %.2f%s", key, n, unit, bound, unit))
			}
		}
		limit("uptime", "%", minUptimePercent, true)
		limit("avg_response_time", "ms", maxResponseTimeMillis, false)
		limit("error_rate", "%", maxErrorRatePercent, false)
	}
	if res := obj(t, "resource_metrics"); res != nil {
		for key, bound := range map[string]float64{"cpu_usage": maxCPUPercent, "memory_usage": maxMemoryPercent} {
			v, present := res[key]
			if !present {
				continue
			}
			n, err := quantity(v, "%")
			switch {
			case err != nil:
				issues = append(issues, fmt.Sprintf("invalid %s format: %v", key, v))
			case n > bound:
				issues = append(issues, fmt.Sprintf("%s %.1f above %.1f", key, n, bound))
			}
		}
	}
	sort.Strings(issues)
	return outcome("Performance metrics", "performance", "within_limits", "degraded", issues, nil), nil
}

var (
	visionKeywords = []string{
		"validation", "ai agent", "configuration", "technical", "behavioral",
		"semantic", "multi-pillar", "architecture", "systematic", "framework",
		"reliability", "cognitive", "ontology", "knowledge graph", "agent configuration",
	}
	pillarHints = []string{
		"infrastructure", "validation", "sre", "tech", "behavior", "cognitive",
		"response", "pattern", "semantic", "ontology", "knowledge", "translation",
	}
)

func checkVision(_ context.Context, c *gate.Check) (gate.Finding, error) {
	if c.Target == nil {
		return gate.Passed("no target to align"), nil
	}

	var issues []string
	text := strings.ToLower(textOf(c.Target))
	var matched []string
	for _, kw := range visionKeywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		issues = append(issues, "no alignment with project vision keywords")
	}
	if t, ok := asObject(c.Target); ok {
		found := false
		for key := range t {
			k := strings.ToLower(key)
			for _, hint := range pillarHints {
				if strings.Contains(k, hint) {
					found = true
				}
			}
		}
		if !found {
			issues = append(issues, "target has no attribute related to a validation pillar")
		}
	}
	return outcome("Vision alignment", "vision", "aligned", "misaligned", issues,
		map[string]any{"matched_keywords": matched}), nil
}
