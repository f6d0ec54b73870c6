// Package knowledge ships the built-in framework knowledge graphs.
package knowledge

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/zero-day-ai/semgate/graph"
)

//go:embed graphs/*.yaml
var graphFS embed.FS

// Frameworks returns the names of the bundled graphs in sorted order.
func Frameworks() []string {
	entries, err := fs.ReadDir(graphFS, "graphs")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(out)
	return out
}

// Definition returns the bundled definition for framework.
func Definition(framework string) (*graph.Definition, error) {
	data, err := graphFS.ReadFile("graphs/" + graph.FrameworkKey(framework) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no built-in graph for framework %q", framework)
	}
	return graph.ParseDefinition(data)
}

// LoadAll installs every bundled graph into store.
func LoadAll(store *graph.Store) error {
	for _, fw := range Frameworks() {
		def, err := Definition(fw)
		if err != nil {
			return err
		}
		if _, err := store.Load(fw, def); err != nil {
			return err
		}
	}
	return nil
}
