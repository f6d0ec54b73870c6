// Package serve exposes knowledge graph availability over the standard gRPC
// health checking protocol, with an optional HTTP endpoint for Prometheus
// metrics.
//
// Each loaded framework is reported as its own health service, named
// "semgate.graph.<framework>". The empty service name reports SERVING while
// at least one graph is loaded.
//
// # Usage
//
//	srv, err := serve.New(
//	    serve.WithPort(50051),
//	    serve.WithMetrics(":9090", collector.Handler()),
//	    serve.WithGracefulShutdown(30*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	srv.TrackGraphs(store)
//	return srv.Serve(ctx)
//
// # Graceful Shutdown
//
// Serve returns when ctx is cancelled or SIGINT or SIGTERM arrives. Every
// health service is marked NOT_SERVING first, then active RPCs get up to the
// configured timeout before the server is stopped.
//
// # TLS
//
//	serve.WithTLS("/etc/certs/server.crt", "/etc/certs/server.key")
package serve
