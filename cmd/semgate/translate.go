package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/semgate/mapper"
)

func newTranslateCmd(a *app) *cobra.Command {
	var (
		framework string
		verify    bool
	)
	cmd := &cobra.Command{
		Use:   "translate <intent...>",
		Short: "Translate an intent into a concept of a framework's knowledge graph",
		Example: `  semgate translate -f autogen make the agents talk to each other
  semgate translate -f crewai --verify "assign tasks to agents" -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			intent := strings.Join(args, " ")
			b, err := svc.BuildBridge(cmd.Context(), intent, framework)
			if err != nil {
				return err
			}
			out := translateOutput{Bridge: b}
			if verify && b.Result.Grounded() {
				v, err := svc.Verify(b.Result.Framework, b.Result.ConceptID)
				if err != nil {
					return err
				}
				out.Verification = &v
			}

			if a.json() {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printTranslation(cmd, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&framework, "framework", "f", "autogen", "Target framework")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the grounded concept against its schema")
	return cmd
}

type translateOutput struct {
	mapper.Bridge
	Verification *mapper.Verification `json:"verification,omitempty"`
}

func printTranslation(cmd *cobra.Command, out translateOutput) {
	r := out.Result
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Framework:  %s\n", r.Framework)
	fmt.Fprintf(w, "Intent:     %s\n", r.Intent)
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	if r.Grounded() {
		fmt.Fprintf(w, "Concept:    %s\n", r.ConceptID)
		if out.Concept != nil {
			fmt.Fprintf(w, "Type:       %s\n", out.Concept.Type)
			if d := out.Concept.StringAttr("description"); d != "" {
				fmt.Fprintf(w, "About:      %s\n", d)
			}
		}
	}
	fmt.Fprintf(w, "Confidence: %.2f\n", r.Confidence)
	fmt.Fprintf(w, "Decision:   %s\n", out.Decision)
	if len(r.Candidates) > 0 {
		fmt.Fprintln(w, "Candidates:")
		for _, c := range r.Candidates {
			fmt.Fprintf(w, "  %-40s %-24s %.2f\n", c.Key, c.ConceptID, c.Score)
		}
	}
	if v := out.Verification; v != nil {
		if v.Valid {
			fmt.Fprintln(w, "Verified:   yes")
		} else {
			fmt.Fprintf(w, "Verified:   no (missing %s)\n", strings.Join(v.MissingFields, ", "))
		}
	}
}
