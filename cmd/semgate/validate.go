package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/semerr"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		contextFile string
		gateName    string
		batch       bool
	)
	cmd := &cobra.Command{
		Use:   "validate [target-file]",
		Short: "Validate a target configuration against the validation gates",
		Long: `Validate reads a YAML or JSON target from target-file, or from stdin when
the file is omitted or "-", and runs every gate against it. The command exits
with status 2 when the target does not pass.

With --batch the document must be a list of targets, validated concurrently
up to gates.parallelism at a time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			target, err := readDocument(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			var hints map[string]any
			if contextFile != "" {
				doc, err := readDocument(cmd.InOrStdin(), contextFile)
				if err != nil {
					return err
				}
				m, ok := doc.(map[string]any)
				if !ok {
					return semerr.Validation("cli.validate", fmt.Errorf("context file %s is not a mapping", contextFile))
				}
				hints = m
			}

			svc, err := a.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			switch {
			case gateName != "":
				g, err := gate.ParseGate(gateName)
				if err != nil {
					return err
				}
				v, err := svc.Engine().ValidateGate(cmd.Context(), g, target, hints)
				if err != nil {
					return err
				}
				if err := a.printVerdicts(cmd.OutOrStdout(), v, []gate.Verdict{v}); err != nil {
					return err
				}
				if !v.Pass {
					return errValidationFailed
				}
				return nil

			case batch:
				targets, ok := target.([]any)
				if !ok {
					return semerr.Validation("cli.validate", fmt.Errorf("--batch expects a list of targets"))
				}
				reports, err := svc.ValidateBatch(cmd.Context(), targets, hints)
				if err != nil {
					return err
				}
				pass := true
				if a.json() {
					if err := writeJSON(cmd.OutOrStdout(), reports); err != nil {
						return err
					}
				}
				for i, rep := range reports {
					if !a.json() {
						fmt.Fprintf(cmd.OutOrStdout(), "== target %d %s\n", i, rep.TargetID)
						if err := a.printVerdicts(cmd.OutOrStdout(), rep, rep.Gates); err != nil {
							return err
						}
					}
					pass = pass && rep.OverallPass
				}
				if !pass {
					return errValidationFailed
				}
				return nil

			default:
				rep, err := svc.Validate(cmd.Context(), target, hints)
				if err != nil {
					return err
				}
				if err := a.printVerdicts(cmd.OutOrStdout(), rep, rep.Gates); err != nil {
					return err
				}
				if !rep.OverallPass {
					return errValidationFailed
				}
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&contextFile, "context", "", "YAML or JSON file of context hints passed to every rule")
	cmd.Flags().StringVarP(&gateName, "gate", "g", "", "Run a single gate instead of all gates")
	cmd.Flags().BoolVar(&batch, "batch", false, "Treat the document as a list of targets")
	return cmd
}

// readDocument decodes a YAML or JSON document from path, or from stdin
// when path is "-".
func readDocument(stdin io.Reader, path string) (any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, semerr.Validation("cli.read", fmt.Errorf("read %s: %w", path, err))
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, semerr.Validation("cli.read", fmt.Errorf("decode %s: %w", path, err))
	}
	return doc, nil
}

// printVerdicts writes v as JSON, or the verdicts as a table.
func (a *app) printVerdicts(w io.Writer, v any, verdicts []gate.Verdict) error {
	if a.json() {
		return writeJSON(w, v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GATE\tRULE\tSEVERITY\tOUTCOME\tMESSAGE")
	for _, verdict := range verdicts {
		for _, r := range verdict.Results {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", verdict.Gate, r.RuleID, r.Severity, r.Outcome, r.Message)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	var failed []string
	for _, verdict := range verdicts {
		status := "PASS"
		if !verdict.Pass {
			status = "FAIL"
			failed = append(failed, verdict.BlockingFailures()...)
		}
		fmt.Fprintf(w, "%-12s %s\n", verdict.Gate.String()+":", status)
	}
	if len(failed) > 0 {
		fmt.Fprintf(w, "Blocking failures: %s\n", strings.Join(failed, ", "))
	} else {
		fmt.Fprintln(w, "Overall: PASS")
	}
	return nil
}
