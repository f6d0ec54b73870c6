// Package semgate translates natural-language descriptions of agent behavior
// into concepts grounded in framework knowledge graphs, and validates agent
// configurations against six categories of validation gates.
//
// # Core Concepts
//
//   - Knowledge graphs (package graph): per-framework concepts and the
//     phrases that map to them, held in a copy-on-write Store.
//   - Mapper (package mapper): deterministic phrase to concept translation
//     that never returns a concept its graph does not contain.
//   - Gate engine (package gate): dependency-aware rule evaluation across the
//     technical, behavioral, semantic, integration, performance and vision
//     gates, aggregated into a Report.
//   - Rules (package rules): the default rule set and CEL expression rules
//     loaded from YAML packs.
//
// # Getting Started
//
//	svc, err := semgate.New(semgate.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	bridge, err := svc.BuildBridge(ctx, "make the agents talk to each other", "autogen")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(bridge.Result.ConceptID, bridge.Decision) // GroupChat auto_apply
//
//	report, err := svc.Validate(ctx, target, nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(report.OverallPass, report.BlockingFailures)
//
// # Observability
//
// Components log through log/slog and emit OpenTelemetry spans and metrics
// through the global providers. Package metrics adapts gate activity to a
// Prometheus registry.
package semgate
