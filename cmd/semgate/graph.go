package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/graphsource"
	"github.com/zero-day-ai/semgate/knowledge"
	"github.com/zero-day-ai/semgate/semerr"
)

func newGraphCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect, check and publish knowledge graphs",
	}
	cmd.AddCommand(
		newGraphListCmd(a),
		newGraphCheckCmd(a),
		newGraphExportCmd(),
		newGraphPushCmd(a),
	)
	return cmd
}

// loadStore builds a store from the configured graph sources: the built-in
// graphs, then the graph directory.
func (a *app) loadStore(cmd *cobra.Command) (*graph.Store, error) {
	store := graph.NewStore(graph.WithLogger(a.logger))
	if a.cfg.Graphs.Builtin {
		if err := knowledge.LoadAll(store); err != nil {
			return nil, err
		}
	}
	if a.cfg.Graphs.Dir != "" {
		src := graphsource.NewDir(a.cfg.Graphs.Dir, graphsource.WithLogger(a.logger))
		if _, err := graphsource.LoadInto(cmd.Context(), store, src, a.logger); err != nil {
			a.logger.Warn("graph directory loaded with errors", "dir", a.cfg.Graphs.Dir, "error", err)
		}
	}
	return store, nil
}

type graphSummary struct {
	Framework string `json:"framework"`
	Version   string `json:"version,omitempty"`
	Concepts  int    `json:"concepts"`
	Phrases   int    `json:"phrases"`
}

func newGraphListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded knowledge graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.loadStore(cmd)
			if err != nil {
				return err
			}
			var out []graphSummary
			for _, fw := range store.Frameworks() {
				g, _ := store.Lookup(fw)
				out = append(out, graphSummary{
					Framework: fw,
					Version:   g.Version(),
					Concepts:  g.Len(),
					Phrases:   len(g.Keys()),
				})
			}
			if a.json() {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FRAMEWORK\tVERSION\tCONCEPTS\tPHRASES")
			for _, s := range out {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Framework, s.Version, s.Concepts, s.Phrases)
			}
			return tw.Flush()
		},
	}
}

func newGraphCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <definition-file...>",
		Short: "Validate knowledge graph definition files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := graph.NewStore(graph.WithLogger(a.logger))
			failed := 0
			for _, path := range args {
				def, err := readDefinition(path)
				if err == nil {
					fw := def.Framework
					if fw == "" {
						fw = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
					}
					_, err = store.Load(fw, def)
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", path)
			}
			if failed > 0 {
				return semerr.GraphLoad("cli.graph.check", "", fmt.Sprintf("%d of %d definitions invalid", failed, len(args)))
			}
			return nil
		},
	}
}

func newGraphExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <framework>",
		Short: "Print a built-in knowledge graph definition as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := knowledge.Definition(args[0])
			if err != nil {
				return semerr.NotFound("cli.graph.export", "framework", args[0])
			}
			data, err := def.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newGraphPushCmd(a *app) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "push <definition-file|framework>",
		Short: "Publish a knowledge graph definition to etcd",
		Long: `Push validates a definition file and writes it to etcd under
/<graphs.etcd_namespace>/graphs/<framework>, where running servers pick it up.
With --delete the argument is a framework name, and its definition is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.cfg.Graphs.EtcdEndpoints) == 0 {
				return semerr.Configuration("cli.graph.push", fmt.Errorf("graphs.etcd_endpoints is not set"))
			}
			src, err := graphsource.NewEtcd(graphsource.EtcdConfig{
				Endpoints: a.cfg.Graphs.EtcdEndpoints,
				Namespace: a.cfg.Graphs.EtcdNamespace,
			}, a.logger)
			if err != nil {
				return err
			}
			defer semerr.CloseWithLog(src, a.logger, "etcd graph source")

			if remove {
				if err := src.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", src.Key(args[0]))
				return nil
			}

			def, err := readDefinition(args[0])
			if err != nil {
				return err
			}
			if _, err := graph.NewStore(graph.WithLogger(a.logger)).Load(def.Framework, def); err != nil {
				return err
			}
			if err := src.Put(cmd.Context(), def); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s\n", src.Key(def.Framework))
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the framework's definition instead")
	return cmd
}

func readDefinition(path string) (*graph.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, semerr.GraphLoad("cli.graph", "", err.Error())
	}
	return graph.ParseDefinition(data)
}
