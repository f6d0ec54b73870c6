package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/semerr"
)

// Pack is a YAML document of expression rules:
//
//	rules:
//	  - id: llm_config_present
//	    gate: technical
//	    severity: blocking
//	    depends_on: [tech_infrastructure_check]
//	    priority: 7
//	    expression: has(target.llm_config)
//	    message: llm_config is required
//	    timeout: 5s
type Pack struct {
	Rules []ExprRule `yaml:"rules"`
}

// ParsePack decodes a rule pack. Unknown fields are rejected.
func ParsePack(data []byte) (*Pack, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Pack
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return &p, nil
		}
		return nil, semerr.Validation("rules.ParsePack", fmt.Errorf("decode rule pack: %w", err))
	}
	seen := make(map[string]struct{}, len(p.Rules))
	for _, r := range p.Rules {
		if _, dup := seen[r.ID]; dup {
			return nil, semerr.Validation("rules.ParsePack", fmt.Errorf("duplicate rule id %q", r.ID))
		}
		seen[r.ID] = struct{}{}
	}
	return &p, nil
}

// Compile compiles every rule in the pack. It stops at the first error.
func (p *Pack) Compile(c *Compiler) ([]gate.Rule, error) {
	out := make([]gate.Rule, 0, len(p.Rules))
	for _, def := range p.Rules {
		r, err := c.Compile(def)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadFiles reads, parses and compiles the rule packs at paths, in order.
func LoadFiles(c *Compiler, paths ...string) ([]gate.Rule, error) {
	var out []gate.Rule
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, semerr.Configuration("rules.LoadFiles", err).WithContext(map[string]any{"path": path})
		}
		p, err := ParsePack(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rules, err := p.Compile(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, rules...)
	}
	return out, nil
}
