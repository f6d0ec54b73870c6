// Package rules provides the default validation rules for the six gates and
// CEL expression rules loaded from YAML rule packs.
//
//	rs, err := rules.Defaults(rules.Deps{Mapper: m, Store: store, Memory: mem})
//	err = rules.Register(engine, rs...)
//
//	c, _ := rules.NewCompiler()
//	extra, err := rules.LoadFiles(c, "rules/autogen.yaml")
//	err = rules.Register(engine, extra...)
package rules
