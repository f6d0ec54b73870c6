// Package memory provides the key-value memory collaborator used to retain
// validation results and share hints between runs.
//
// Three implementations are provided:
//
//   - Local: in-process map with lazy expiry.
//   - Redis: go-redis backed store; expiry is enforced by the server.
//   - Bounded: wraps another collaborator and caps each call's duration.
//
// Every implementation stores values as JSON:
//
//	mem := memory.NewBounded(memory.NewLocal(), 2*time.Second)
//	ok, err := mem.Store(ctx, "semgate:report:123", report, 86400)
//	data, found, err := mem.Retrieve(ctx, "semgate:report:123")
//	var rep gate.Report
//	err = memory.Decode(data, &rep)
package memory
