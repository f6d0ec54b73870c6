package graph

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/semgate/semerr"
)

const sampleYAML = `
framework: autogen
version: "0.2"
node_types:
  agent:
    required_fields: [name]
concepts:
  - id: GroupChat
    type: agent
    attributes:
      name: GroupChat
      description: Multi-agent conversation container
  - id: AssistantAgent
    type: agent
    attributes:
      name: AssistantAgent
  - id: llm_config
    type: configuration
    attributes:
      model: gpt-4
    required_fields: [model]
mappings:
  - phrase: make the agents talk to each other
    concept_id: GroupChat
    synonyms: [have bots converse, "Group Chat"]
  - phrase: assistant
    concept_id: AssistantAgent
  - phrase: LLM config
    concept_id: llm_config
`

func sampleDefinition(t *testing.T) *Definition {
	t.Helper()
	def, err := ParseDefinition([]byte(sampleYAML))
	require.NoError(t, err)
	return def
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Make the agents talk to each other", "make the agents talk to each other"},
		{"  make   THE agents\ttalk  ", "make the agents talk"},
		{"make the agents talk, please!", "make the agents talk please"},
		{"agent's config", "agents config"},
		{"agent’s config", "agents config"},
		{"llm-config", "llm config"},
		{"ＧｒｏｕｐＣｈａｔ", "groupchat"},
		{"Straße", "strasse"},
		{"", ""},
		{"?!...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "normalize must be idempotent")
		})
	}
}

func TestFrameworkKey(t *testing.T) {
	assert.Equal(t, "autogen", FrameworkKey("  AutoGen "))
	assert.Equal(t, "", FrameworkKey("   "))
}

func TestParseDefinition(t *testing.T) {
	def := sampleDefinition(t)
	assert.Equal(t, "autogen", def.Framework)
	assert.Len(t, def.Concepts, 3)
	assert.Len(t, def.Mappings, 3)
	assert.Equal(t, []string{"name"}, def.NodeTypes["agent"].RequiredFields)

	t.Run("json documents decode", func(t *testing.T) {
		def, err := ParseDefinition([]byte(`{"framework":"x","concepts":[{"id":"A","type":"agent"}],"mappings":[]}`))
		require.NoError(t, err)
		assert.Equal(t, "A", def.Concepts[0].ID)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := ParseDefinition([]byte("framework: x\nconcept: []\n"))
		assert.ErrorIs(t, err, semerr.ErrGraphLoad)
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := ParseDefinition(nil)
		assert.ErrorIs(t, err, semerr.ErrGraphLoad)
		assert.ErrorIs(t, err, &semerr.Error{Kind: semerr.KindGraphLoad})
	})

	t.Run("round trip", func(t *testing.T) {
		data, err := def.Marshal()
		require.NoError(t, err)
		again, err := ParseDefinition(data)
		require.NoError(t, err)
		assert.Equal(t, def, again)
	})
}

func TestStore_Load(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return at }))

	g, err := store.Load("AutoGen", sampleDefinition(t))
	require.NoError(t, err)

	assert.Equal(t, "autogen", g.Framework())
	assert.Equal(t, "0.2", g.Version())
	assert.Equal(t, at, g.LoadedAt())
	assert.Equal(t, 3, g.Len())

	id, ok := g.Resolve("make the agents talk to each other")
	assert.True(t, ok)
	assert.Equal(t, "GroupChat", id)

	id, ok = g.Resolve("group chat")
	assert.True(t, ok, "synonyms are stored normalized")
	assert.Equal(t, "GroupChat", id)

	id, ok = g.Resolve("llm config")
	assert.True(t, ok, "phrases are stored normalized")
	assert.Equal(t, "llm_config", id)

	assert.Equal(t, []string{
		"assistant",
		"group chat",
		"have bots converse",
		"llm config",
		"make the agents talk to each other",
	}, g.Keys())

	c, ok := g.Concept("GroupChat")
	require.True(t, ok)
	assert.Equal(t, "GroupChat", c.StringAttr("name"))
	_, ok = c.Attr("no_such_attribute")
	assert.False(t, ok)

	ids := make([]string, 0)
	for _, c := range g.Concepts() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"AssistantAgent", "GroupChat", "llm_config"}, ids)

	assert.True(t, store.Has("autogen"))
	assert.Equal(t, []string{"autogen"}, store.Frameworks())
}

func TestStore_LoadRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		problem string
	}{
		{
			name: "missing type required field",
			mutate: func(d *Definition) {
				d.Concepts[1].Attributes = map[string]any{}
			},
			problem: `concept "AssistantAgent" is missing required fields [name]`,
		},
		{
			name: "missing own required field",
			mutate: func(d *Definition) {
				d.Concepts[2].Attributes = map[string]any{"model": nil}
			},
			problem: `concept "llm_config" is missing required fields [model]`,
		},
		{
			name: "dangling mapping",
			mutate: func(d *Definition) {
				d.Mappings = append(d.Mappings, MappingDef{Phrase: "ghost", ConceptID: "Ghost"})
			},
			problem: `mapping "ghost" references unknown concept "Ghost"`,
		},
		{
			name: "duplicate concept id",
			mutate: func(d *Definition) {
				d.Concepts = append(d.Concepts, d.Concepts[0])
			},
			problem: `duplicate concept id "GroupChat"`,
		},
		{
			name: "conflicting phrase",
			mutate: func(d *Definition) {
				d.Mappings = append(d.Mappings, MappingDef{Phrase: "Assistant!", ConceptID: "GroupChat"})
			},
			problem: `phrase "assistant" maps to both "AssistantAgent" and "GroupChat"`,
		},
		{
			name: "framework mismatch",
			mutate: func(d *Definition) {
				d.Framework = "crewai"
			},
			problem: `definition declares framework "crewai"`,
		},
		{
			name: "empty id",
			mutate: func(d *Definition) {
				d.Concepts = append(d.Concepts, ConceptDef{Type: "agent"})
			},
			problem: "concept #3 has an empty id",
		},
		{
			name: "empty type",
			mutate: func(d *Definition) {
				d.Concepts[2].Type = ""
			},
			problem: `concept "llm_config" has an empty type`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			def := sampleDefinition(t)
			tt.mutate(def)

			g, err := store.Load("autogen", def)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, semerr.ErrGraphLoad)

			var se *semerr.Error
			require.True(t, errors.As(err, &se))
			assert.Contains(t, se.Context["problems"], tt.problem)
			assert.False(t, store.Has("autogen"), "a rejected definition must not be installed")
		})
	}
}

func TestStore_Get(t *testing.T) {
	store := NewStore()
	_, err := store.Get("autogen")
	assert.ErrorIs(t, err, semerr.ErrNotFound)

	_, err = store.Load("autogen", sampleDefinition(t))
	require.NoError(t, err)
	g, err := store.Get(" AUTOGEN")
	require.NoError(t, err)
	assert.Equal(t, "autogen", g.Framework())
}

func TestStore_Reload(t *testing.T) {
	store := NewStore()

	_, err := store.Reload("autogen", sampleDefinition(t))
	assert.ErrorIs(t, err, semerr.ErrNotFound, "reload of an unloaded framework")

	first, err := store.Load("autogen", sampleDefinition(t))
	require.NoError(t, err)

	t.Run("invalid reload keeps the previous graph", func(t *testing.T) {
		bad := sampleDefinition(t)
		bad.Mappings[0].ConceptID = "Nope"
		_, err := store.Reload("autogen", bad)
		assert.ErrorIs(t, err, semerr.ErrGraphLoad)

		cur, err := store.Get("autogen")
		require.NoError(t, err)
		assert.Same(t, first, cur)
	})

	t.Run("valid reload swaps and old snapshot stays intact", func(t *testing.T) {
		next := sampleDefinition(t)
		next.Version = "0.3"
		next.Mappings = next.Mappings[1:]

		second, err := store.Reload("autogen", next)
		require.NoError(t, err)

		cur, _ := store.Get("autogen")
		assert.Same(t, second, cur)
		assert.Equal(t, "0.3", cur.Version())

		_, ok := first.Resolve("make the agents talk to each other")
		assert.True(t, ok, "readers holding the old graph keep their snapshot")
		_, ok = second.Resolve("make the agents talk to each other")
		assert.False(t, ok)
	})
}

func TestStore_ReloadAfterConcurrentRemove(t *testing.T) {
	var store *Store
	var removeOnBuild atomic.Bool
	store = NewStore(WithClock(func() time.Time {
		// Runs while the replacement graph is built, after Reload's first
		// existence check.
		if removeOnBuild.Load() {
			store.Remove("autogen")
		}
		return time.Unix(0, 0)
	}))
	_, err := store.Load("autogen", sampleDefinition(t))
	require.NoError(t, err)

	removeOnBuild.Store(true)
	_, err = store.Reload("autogen", sampleDefinition(t))
	assert.ErrorIs(t, err, semerr.ErrNotFound)
	assert.False(t, store.Has("autogen"), "reload must not resurrect a removed framework")
}

func TestStore_RemoveAndListeners(t *testing.T) {
	store := NewStore()
	var changes []Change
	store.OnChange(func(c Change) { changes = append(changes, c) })

	_, err := store.Load("autogen", sampleDefinition(t))
	require.NoError(t, err)
	assert.True(t, store.Remove("autogen"))
	assert.False(t, store.Remove("autogen"))

	assert.Equal(t, []Change{
		{Framework: "autogen", Kind: ChangeLoaded, Version: "0.2"},
		{Framework: "autogen", Kind: ChangeRemoved},
	}, changes)
}

func TestStore_ConcurrentReadsDuringReload(t *testing.T) {
	store := NewStore()
	_, err := store.Load("autogen", sampleDefinition(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				g, err := store.Get("autogen")
				if assert.NoError(t, err) {
					_, ok := g.Resolve("assistant")
					assert.True(t, ok)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_, err := store.Reload("autogen", sampleDefinition(t))
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestKnowledgeGraph_MissingFields(t *testing.T) {
	store := NewStore()
	g, err := store.Load("autogen", sampleDefinition(t))
	require.NoError(t, err)

	missing, ok := g.MissingFields("GroupChat")
	assert.True(t, ok)
	assert.Empty(t, missing)

	_, ok = g.MissingFields("Nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"agent"}, g.Schema().Types())
	assert.True(t, g.Schema().IsRegistered("agent"))
	assert.Equal(t, []string{"name"}, g.Schema().RequiredFields("agent"))
	assert.Empty(t, g.Schema().RequiredFields("method"))
}
