package graph

import (
	"sort"
)

// Schema maps each declared concept type to the attribute names every
// concept of that type must carry. A Schema belongs to one KnowledgeGraph
// and is never modified after load.
type Schema struct {
	required map[string][]string
}

func newSchema(types map[string]NodeTypeDef) Schema {
	s := Schema{required: make(map[string][]string, len(types))}
	for name, def := range types {
		s.required[name] = dedupe(def.RequiredFields)
	}
	return s
}

// IsRegistered reports whether the concept type was declared.
func (s Schema) IsRegistered(conceptType string) bool {
	_, ok := s.required[conceptType]
	return ok
}

// RequiredFields returns the attribute names declared for a type, sorted.
// Undeclared types have no requirements.
func (s Schema) RequiredFields(conceptType string) []string {
	return append([]string(nil), s.required[conceptType]...)
}

// Types returns the declared type names in sorted order.
func (s Schema) Types() []string {
	out := make([]string, 0, len(s.required))
	for t := range s.required {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Missing returns the required attributes absent from c, combining the
// concept's own required fields with those of its type. A field holding a
// nil value counts as absent.
func (s Schema) Missing(c Concept) []string {
	need := dedupe(append(append([]string(nil), c.RequiredFields...), s.required[c.Type]...))
	var missing []string
	for _, field := range need {
		if v, ok := c.Attr(field); !ok || v == nil {
			missing = append(missing, field)
		}
	}
	return missing
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
