package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/rules"
)

func newRulesCmd(a *app) *cobra.Command {
	var gateName string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List registered validation rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var g gate.Gate
			if gateName != "" {
				parsed, err := gate.ParseGate(gateName)
				if err != nil {
					return err
				}
				g = parsed
			}

			svc, err := a.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			infos := svc.Engine().Rules(g)
			if a.json() {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GATE\tID\tSEVERITY\tPRIORITY\tSTATE\tDEPENDS ON")
			for _, r := range infos {
				deps := strings.Join(r.DependsOn, ",")
				if deps == "" {
					deps = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.Gate, r.ID, r.Severity, r.Priority, r.State, deps)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&gateName, "gate", "g", "", "Only list rules of this gate")
	cmd.AddCommand(newRulesCheckCmd())
	return cmd
}

func newRulesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <pack-file...>",
		Short: "Parse and compile expression rule packs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rules.NewCompiler()
			if err != nil {
				return err
			}
			compiled, err := rules.LoadFiles(c, args...)
			if err != nil {
				return err
			}
			for _, r := range compiled {
				fmt.Fprintf(cmd.OutOrStdout(), "ok  %s (%s)\n", r.ID, r.Gate)
			}
			return nil
		},
	}
}
