package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/semgate"
	"github.com/zero-day-ai/semgate/config"
	"github.com/zero-day-ai/semgate/semerr"
)

// Exit codes.
const (
	ExitSuccess          = 0
	ExitError            = 1
	ExitValidationFailed = 2
	ExitConfigError      = 3
)

// errValidationFailed is returned when a report does not pass overall.
var errValidationFailed = errors.New("validation failed")

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errValidationFailed):
		return ExitValidationFailed
	case errors.Is(err, semerr.ErrInvalidConfig):
		return ExitConfigError
	default:
		return ExitError
	}
}

// app carries state shared by every command.
type app struct {
	configPath string
	output     string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the CLI with args, cancelling on SIGINT or SIGTERM.
func Execute(ctx context.Context, args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "semgate",
		Short: "Ground agent intents in framework knowledge graphs and validate agent configurations",
		Long: `semgate translates natural-language descriptions of agent behavior into
concepts of a framework's knowledge graph, and validates agent configurations
against the technical, behavioral, semantic, integration, performance and
vision gates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (environment: SEMGATE_*)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "Output format (text|json)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level (debug|info|warn|error)")

	root.AddCommand(
		newTranslateCmd(a),
		newValidateCmd(a),
		newRulesCmd(a),
		newGraphCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	if a.output != "text" && a.output != "json" {
		return semerr.Configuration("cli", fmt.Errorf("unknown output format %q", a.output))
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) service(opts ...semgate.Option) (*semgate.Service, error) {
	base := []semgate.Option{semgate.WithConfig(a.cfg), semgate.WithLogger(a.logger)}
	return semgate.New(append(base, opts...)...)
}

func (a *app) json() bool { return a.output == "json" }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
