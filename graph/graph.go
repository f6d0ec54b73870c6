package graph

import (
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/zero-day-ai/semgate/semerr"
)

// Common concept types. Definitions may declare others.
const (
	TypeAgent         = "agent"
	TypeConfiguration = "configuration"
	TypePattern       = "pattern"
	TypeMethod        = "method"
	TypeProperty      = "property"
)

// Concept is a node in a framework's knowledge graph. Concepts returned by a
// KnowledgeGraph must be treated as read-only.
type Concept struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Attributes     map[string]any `json:"attributes,omitempty"`
	RequiredFields []string       `json:"required_fields,omitempty"`
}

// Attr returns the named attribute.
func (c Concept) Attr(name string) (any, bool) {
	v, ok := c.Attributes[name]
	return v, ok
}

// StringAttr returns the named attribute if it is a string.
func (c Concept) StringAttr(name string) string {
	s, _ := c.Attributes[name].(string)
	return s
}

// Mapping links a natural-language phrase and its synonyms to one concept.
// Phrase and Synonyms are stored normalized.
type Mapping struct {
	Phrase    string   `json:"phrase"`
	ConceptID string   `json:"concept_id"`
	Synonyms  []string `json:"synonyms,omitempty"`
}

// KnowledgeGraph is the immutable concept graph of one framework. A loaded
// graph is never mutated; Store.Reload installs a new instance instead.
type KnowledgeGraph struct {
	framework string
	version   string
	loadedAt  time.Time

	concepts map[string]Concept
	ids      []string

	mappings []Mapping
	// index maps every normalized phrase and synonym to its concept id.
	index map[string]string
	keys  []string

	schema Schema
}

// Framework returns the framework key the graph was loaded under.
func (g *KnowledgeGraph) Framework() string { return g.framework }

// Version returns the definition version, which may be empty.
func (g *KnowledgeGraph) Version() string { return g.version }

// LoadedAt returns when the graph was built.
func (g *KnowledgeGraph) LoadedAt() time.Time { return g.loadedAt }

// Schema returns the graph's concept type schema.
func (g *KnowledgeGraph) Schema() Schema { return g.schema }

// Len returns the number of concepts.
func (g *KnowledgeGraph) Len() int { return len(g.concepts) }

// Concept returns the concept with the given id.
func (g *KnowledgeGraph) Concept(id string) (Concept, bool) {
	c, ok := g.concepts[id]
	return c, ok
}

// Concepts returns all concepts ordered by id.
func (g *KnowledgeGraph) Concepts() []Concept {
	out := make([]Concept, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.concepts[id])
	}
	return out
}

// Mappings returns the mapping table in phrase order.
func (g *KnowledgeGraph) Mappings() []Mapping {
	return append([]Mapping(nil), g.mappings...)
}

// Resolve returns the concept id for an already-normalized phrase or synonym.
func (g *KnowledgeGraph) Resolve(key string) (string, bool) {
	id, ok := g.index[key]
	return id, ok
}

// Keys returns every normalized phrase and synonym in lexicographic order.
// The returned slice is shared and must not be modified.
func (g *KnowledgeGraph) Keys() []string { return g.keys }

// MissingFields reports the required attributes the concept lacks. ok is
// false when the concept does not exist.
func (g *KnowledgeGraph) MissingFields(id string) (missing []string, ok bool) {
	c, ok := g.concepts[id]
	if !ok {
		return nil, false
	}
	return g.schema.Missing(c), true
}

// build validates def and freezes it into a KnowledgeGraph. Every problem is
// collected so one error reports the whole definition.
func build(framework string, def *Definition, now time.Time) (*KnowledgeGraph, error) {
	const op = "graph.Load"

	if def == nil {
		return nil, semerr.GraphLoad(op, framework, "definition is nil")
	}

	var problems []string
	if framework == "" {
		problems = append(problems, "framework name is empty")
	}
	if def.Framework != "" && FrameworkKey(def.Framework) != framework {
		problems = append(problems, fmt.Sprintf("definition declares framework %q", def.Framework))
	}

	g := &KnowledgeGraph{
		framework: framework,
		version:   def.Version,
		loadedAt:  now,
		concepts:  make(map[string]Concept, len(def.Concepts)),
		index:     make(map[string]string),
		schema:    newSchema(def.NodeTypes),
	}

	for i, cd := range def.Concepts {
		switch {
		case cd.ID == "":
			problems = append(problems, fmt.Sprintf("concept #%d has an empty id", i))
			continue
		case cd.Type == "":
			problems = append(problems, fmt.Sprintf("concept %q has an empty type", cd.ID))
		}
		if _, dup := g.concepts[cd.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate concept id %q", cd.ID))
			continue
		}
		c := Concept{
			ID:             cd.ID,
			Type:           cd.Type,
			Attributes:     maps.Clone(cd.Attributes),
			RequiredFields: dedupe(cd.RequiredFields),
		}
		if missing := g.schema.Missing(c); len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("concept %q is missing required fields %v", cd.ID, missing))
		}
		g.concepts[cd.ID] = c
		g.ids = append(g.ids, cd.ID)
	}
	sort.Strings(g.ids)

	for i, md := range def.Mappings {
		phrase := Normalize(md.Phrase)
		if phrase == "" {
			problems = append(problems, fmt.Sprintf("mapping #%d has an empty phrase", i))
			continue
		}
		if _, ok := g.concepts[md.ConceptID]; !ok {
			problems = append(problems, fmt.Sprintf("mapping %q references unknown concept %q", md.Phrase, md.ConceptID))
			continue
		}
		m := Mapping{Phrase: phrase, ConceptID: md.ConceptID}
		for _, key := range append([]string{md.Phrase}, md.Synonyms...) {
			norm := Normalize(key)
			if norm == "" {
				continue
			}
			if prev, ok := g.index[norm]; ok {
				if prev != md.ConceptID {
					problems = append(problems, fmt.Sprintf("phrase %q maps to both %q and %q", norm, prev, md.ConceptID))
				}
				continue
			}
			g.index[norm] = md.ConceptID
			if norm != phrase {
				m.Synonyms = append(m.Synonyms, norm)
			}
		}
		g.mappings = append(g.mappings, m)
	}

	if len(problems) > 0 {
		return nil, semerr.GraphLoad(op, framework, problems...)
	}

	g.keys = make([]string, 0, len(g.index))
	for k := range g.index {
		g.keys = append(g.keys, k)
	}
	sort.Strings(g.keys)
	sort.SliceStable(g.mappings, func(i, j int) bool { return g.mappings[i].Phrase < g.mappings[j].Phrase })

	return g, nil
}
