package graph

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/semgate/semerr"
)

// Definition is the transport form of a knowledge graph, as read from YAML or
// JSON documents. A Definition is validated and frozen by Store.Load.
//
//	framework: autogen
//	version: "0.2"
//	node_types:
//	  agent:
//	    required_fields: [name, description]
//	concepts:
//	  - id: GroupChat
//	    type: agent
//	    attributes: {name: GroupChat, description: "..."}
//	mappings:
//	  - phrase: make the agents talk to each other
//	    concept_id: GroupChat
//	    synonyms: [have bots converse]
type Definition struct {
	Framework string                 `yaml:"framework" json:"framework"`
	Version   string                 `yaml:"version,omitempty" json:"version,omitempty"`
	NodeTypes map[string]NodeTypeDef `yaml:"node_types,omitempty" json:"node_types,omitempty"`
	Concepts  []ConceptDef           `yaml:"concepts" json:"concepts"`
	Mappings  []MappingDef           `yaml:"mappings" json:"mappings"`
}

// NodeTypeDef declares the fields every concept of a type must carry.
type NodeTypeDef struct {
	RequiredFields []string `yaml:"required_fields" json:"required_fields"`
}

// ConceptDef is one concept entry in a Definition.
type ConceptDef struct {
	ID             string         `yaml:"id" json:"id"`
	Type           string         `yaml:"type" json:"type"`
	Attributes     map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	RequiredFields []string       `yaml:"required_fields,omitempty" json:"required_fields,omitempty"`
}

// MappingDef is one phrase mapping entry in a Definition.
type MappingDef struct {
	Phrase    string   `yaml:"phrase" json:"phrase"`
	ConceptID string   `yaml:"concept_id" json:"concept_id"`
	Synonyms  []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
}

// ParseDefinition decodes a YAML or JSON graph document. Unknown keys are
// rejected. A malformed document is a graph load error; structural
// validation happens in Store.Load.
func ParseDefinition(data []byte) (*Definition, error) {
	const op = "graph.ParseDefinition"
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, semerr.GraphLoad(op, "", "empty graph definition")
		}
		return nil, semerr.GraphLoad(op, "", fmt.Sprintf("decode graph definition: %v", err))
	}
	return &def, nil
}

// Marshal encodes the definition as YAML.
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}
