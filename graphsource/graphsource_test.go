package graphsource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/semerr"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func definition(framework, concept, phrase string) string {
	return "framework: " + framework + `
version: "1"
concepts:
  - id: ` + concept + `
    type: agent
mappings:
  - phrase: ` + phrase + `
    concept_id: ` + concept + "\n"
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDir_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "autogen.yaml", definition("autogen", "GroupChat", "group chat"))
	writeFile(t, dir, "crew.yml", definition("CrewAI", "Crew", "crew"))
	writeFile(t, dir, "untitled.json", `{"concepts":[{"id":"Node","type":"agent"}]}`)
	writeFile(t, dir, "broken.yaml", "framework: [unterminated\n")
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	defs, err := NewDir(dir).Load(context.Background())
	require.Error(t, err, "broken file is reported")
	assert.ErrorIs(t, err, semerr.ErrGraphLoad)

	assert.Len(t, defs, 3)
	assert.Contains(t, defs, "autogen")
	assert.Contains(t, defs, "crewai", "declared framework name is normalized")
	assert.Contains(t, defs, "untitled", "base name is used when no framework is declared")
	assert.NotContains(t, defs, "broken")
}

func TestDir_LoadMissingDir(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "absent")).Load(context.Background())
	assert.ErrorIs(t, err, semerr.ErrInvalidConfig)
}

func TestLoadInto(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "autogen.yaml", definition("autogen", "GroupChat", "group chat"))
	writeFile(t, dir, "bad.yaml", "framework: bad\nconcepts:\n  - id: X\n    type: agent\nmappings:\n  - phrase: x\n    concept_id: Missing\n")

	store := graph.NewStore(graph.WithLogger(quietLogger()))
	n, err := LoadInto(context.Background(), store, NewDir(dir), quietLogger())
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `references unknown concept "Missing"`)
	assert.Equal(t, []string{"autogen"}, store.Frameworks())
}

func TestApply(t *testing.T) {
	store := graph.NewStore(graph.WithLogger(quietLogger()))
	def, err := graph.ParseDefinition([]byte(definition("autogen", "GroupChat", "group chat")))
	require.NoError(t, err)

	require.NoError(t, Apply(store, Update{Framework: "autogen", Definition: def}, quietLogger()))
	assert.True(t, store.Has("autogen"))

	assert.Error(t, Apply(store, Update{Framework: "autogen", Err: assert.AnError}, quietLogger()))
	assert.True(t, store.Has("autogen"), "unreadable update keeps the current graph")

	u := Update{Framework: "autogen"}
	assert.True(t, u.Removed())
	require.NoError(t, Apply(store, u, quietLogger()))
	assert.False(t, store.Has("autogen"))
}

func TestSync_Dir(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, dir, "autogen.yaml", definition("autogen", "GroupChat", "group chat"))

	store := graph.NewStore(graph.WithLogger(quietLogger()))
	src := NewDir(dir, WithDebounce(20*time.Millisecond), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Sync(ctx, store, src, quietLogger()) }()

	require.Eventually(t, func() bool { return store.Has("autogen") }, 2*time.Second, 10*time.Millisecond)

	t.Run("new file", func(t *testing.T) {
		writeFile(t, dir, "crewai.yaml", definition("crewai", "Crew", "crew"))
		assert.Eventually(t, func() bool { return store.Has("crewai") }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("modified file", func(t *testing.T) {
		writeFile(t, dir, "autogen.yaml", definition("autogen", "GroupChatManager", "group chat manager"))
		assert.Eventually(t, func() bool {
			g, ok := store.Lookup("autogen")
			if !ok {
				return false
			}
			_, found := g.Concept("GroupChatManager")
			return found
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("invalid edit keeps graph", func(t *testing.T) {
		writeFile(t, dir, "autogen.yaml", "concepts: {")
		time.Sleep(100 * time.Millisecond)
		g, ok := store.Lookup("autogen")
		require.True(t, ok)
		_, found := g.Concept("GroupChatManager")
		assert.True(t, found)
	})

	t.Run("removed file", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "crewai.yaml")))
		assert.Eventually(t, func() bool { return !store.Has("crewai") }, 2*time.Second, 10*time.Millisecond)
	})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Sync did not return after cancel")
	}
}

func TestDir_WatchClosesOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewDir(t.TempDir(), WithLogger(quietLogger())).Watch(ctx)
	require.NoError(t, err)
	cancel()
	for range ch {
	}
}

func TestDir_WatchMissingDir(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "absent"), WithLogger(quietLogger())).Watch(context.Background())
	assert.ErrorIs(t, err, semerr.ErrInvalidConfig)
}

func TestEtcd_Keys(t *testing.T) {
	e := NewEtcdFromClient(nil, "/prod/", quietLogger())
	assert.Equal(t, "/prod/graphs/autogen", e.Key("AutoGen"))
	assert.Equal(t, "autogen", e.frameworkOf("/prod/graphs/autogen"))

	assert.Equal(t, "/semgate/graphs/", graphPrefix(""))
}

func TestEtcd_Decode(t *testing.T) {
	e := NewEtcdFromClient(nil, "semgate", quietLogger())

	u := e.decode("/semgate/graphs/autogen", []byte(definition("autogen", "GroupChat", "group chat")))
	require.NoError(t, u.Err)
	assert.Equal(t, "autogen", u.Framework)
	require.NotNil(t, u.Definition)

	u = e.decode("/semgate/graphs/crewai", []byte("concepts:\n  - id: Crew\n    type: agent\n"))
	require.NoError(t, u.Err)
	assert.Equal(t, "crewai", u.Definition.Framework, "framework taken from key")

	u = e.decode("/semgate/graphs/crewai", []byte(definition("autogen", "GroupChat", "group chat")))
	assert.ErrorIs(t, u.Err, semerr.ErrGraphLoad)

	u = e.decode("/semgate/graphs/crewai", []byte("{"))
	assert.ErrorIs(t, u.Err, semerr.ErrGraphLoad)
	var se *semerr.Error
	require.True(t, errors.As(u.Err, &se))
	assert.Equal(t, "/semgate/graphs/crewai", se.Context["key"])
	assert.Equal(t, "crewai", se.Context["framework"])
	assert.False(t, u.Removed())
}

func TestNewEtcd_Validation(t *testing.T) {
	_, err := NewEtcd(EtcdConfig{}, quietLogger())
	assert.ErrorIs(t, err, semerr.ErrInvalidConfig)

	_, err = NewEtcd(EtcdConfig{
		Endpoints: []string{"localhost:2379"},
		TLS:       &TLSConfig{Enabled: true},
	}, quietLogger())
	assert.ErrorIs(t, err, semerr.ErrInvalidConfig)
}

func TestEtcd_PutRequiresFramework(t *testing.T) {
	e := NewEtcdFromClient(nil, "semgate", quietLogger())
	err := e.Put(context.Background(), &graph.Definition{})
	assert.ErrorIs(t, err, &semerr.Error{Kind: semerr.KindValidation})
}
