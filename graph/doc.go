// Package graph holds the per-framework knowledge graphs that ground every
// phrase translation.
//
// A graph is built from a Definition (decoded from YAML or JSON), validated
// as a whole, and frozen. The Store publishes graphs through a copy-on-write
// table so lookups never take a lock:
//
//	store := graph.NewStore()
//	def, _ := graph.ParseDefinition(data)
//	if _, err := store.Load("autogen", def); err != nil {
//		// errors.Is(err, semerr.ErrGraphLoad)
//	}
//	g, _ := store.Get("autogen")
//	id, ok := g.Resolve(graph.Normalize("Group Chat"))
//
// Validation rejects duplicate concept ids, empty ids or types, concepts
// missing the fields their type requires, mappings that reference unknown
// concepts, and phrases that normalize to the same key while naming
// different concepts.
package graph
