// Package gate evaluates validation rules grouped into six gates: technical,
// behavioral, semantic, integration, performance and vision.
//
// Rules may depend on other rules, in any gate. A rule runs only after all of
// its dependencies passed in the same run; otherwise it is SKIPPED. Each
// validation call memoizes rule results, so a dependency shared by many rules
// runs once. A gate fails only when a BLOCKING rule fails, and a report
// passes only when every gate does.
//
//	e := gate.NewEngine()
//	e.AddRule(gate.Rule{
//		ID:        "tech_infrastructure_check",
//		Gate:      gate.Technical,
//		Predicate: checkInfra,
//	})
//	report, err := e.ValidateAll(ctx, target, hints)
package gate
