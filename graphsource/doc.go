// Package graphsource feeds knowledge graph definitions into a graph.Store
// from a watched directory or from etcd, and keeps the store in step as
// definitions change.
//
//	src := graphsource.NewDir("/etc/semgate/graphs")
//	go graphsource.Sync(ctx, store, src, logger)
//
// A definition that fails to parse or validate is logged and leaves the
// framework's current graph, if any, in place.
package graphsource
