package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/semgate"
	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/graphsource"
	"github.com/zero-day-ai/semgate/metrics"
	"github.com/zero-day-ai/semgate/semerr"
	"github.com/zero-day-ai/semgate/serve"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port        int
		metricsPort int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve knowledge graph health over gRPC and metrics over HTTP",
		Long: `Serve loads the configured knowledge graphs, keeps them in step with the
graph directory and etcd, and reports each framework as the gRPC health
service "semgate.graph.<framework>". Prometheus metrics are served at
/metrics on the metrics port; a metrics port of 0 disables them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Serve.Port = port
			}
			if cmd.Flags().Changed("metrics-port") {
				a.cfg.Serve.MetricsPort = metricsPort
			}
			return a.serve(cmd)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "gRPC health port (default serve.port)")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "HTTP metrics port (default serve.metrics_port)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	ctx := cmd.Context()
	collector := metrics.New()
	store := graph.NewStore(graph.WithLogger(a.logger))
	collector.TrackGraphs(store)

	svc, err := a.service(semgate.WithStore(store), semgate.WithObserver(collector))
	if err != nil {
		return err
	}
	defer svc.Close()

	opts := []serve.Option{
		serve.WithPort(a.cfg.Serve.Port),
		serve.WithLogger(a.logger),
	}
	if a.cfg.Serve.MetricsPort > 0 {
		opts = append(opts, serve.WithMetrics(fmt.Sprintf(":%d", a.cfg.Serve.MetricsPort), collector.Handler()))
	}
	srv, err := serve.New(opts...)
	if err != nil {
		return err
	}
	srv.TrackGraphs(store)

	sources, closeSources, err := a.graphSources()
	if err != nil {
		srv.Stop()
		return err
	}
	defer closeSources()

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			err := graphsource.Sync(gctx, store, src, a.logger)
			if errors.Is(err, graphsource.ErrWatchClosed) {
				a.logger.Warn("graph source stopped watching", "error", err)
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		err := srv.Serve(gctx)
		if errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// graphSources returns the configured directory and etcd sources, and a
// function releasing them.
func (a *app) graphSources() ([]graphsource.Source, func(), error) {
	var (
		sources []graphsource.Source
		etcd    *graphsource.Etcd
	)
	release := func() {
		if etcd != nil {
			semerr.CloseWithLog(etcd, a.logger, "etcd graph source")
		}
	}
	if dir := a.cfg.Graphs.Dir; dir != "" {
		sources = append(sources, graphsource.NewDir(dir,
			graphsource.WithDebounce(a.cfg.Graphs.Debounce),
			graphsource.WithLogger(a.logger.With(slog.String("source", "dir")))))
	}
	if len(a.cfg.Graphs.EtcdEndpoints) > 0 {
		e, err := graphsource.NewEtcd(graphsource.EtcdConfig{
			Endpoints: a.cfg.Graphs.EtcdEndpoints,
			Namespace: a.cfg.Graphs.EtcdNamespace,
		}, a.logger.With(slog.String("source", "etcd")))
		if err != nil {
			return nil, release, err
		}
		etcd = e
		sources = append(sources, e)
	}
	return sources, release, nil
}
