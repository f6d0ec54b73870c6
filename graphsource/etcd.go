package graphsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/semerr"
)

// EtcdConfig configures an etcd-backed source.
type EtcdConfig struct {
	Endpoints   []string
	Namespace   string
	DialTimeout time.Duration
	TLS         *TLSConfig
}

// Etcd keeps definitions under /<namespace>/graphs/<framework> as YAML.
//
//	src, err := graphsource.NewEtcd(graphsource.EtcdConfig{
//	    Endpoints: []string{"localhost:2379"},
//	    Namespace: "semgate",
//	})
//	defer src.Close()
//	err = src.Put(ctx, def)
type Etcd struct {
	client *clientv3.Client
	prefix string
	logger *slog.Logger
	owned  bool
}

// NewEtcd connects to etcd and verifies connectivity with a read.
func NewEtcd(cfg EtcdConfig, logger *slog.Logger) (*Etcd, error) {
	const op = "graphsource.NewEtcd"
	if len(cfg.Endpoints) == 0 {
		return nil, semerr.Configuration(op, errors.New("etcd endpoints cannot be empty"))
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsCfg, err := cfg.TLS.ClientConfig()
		if err != nil {
			return nil, semerr.Configuration(op, fmt.Errorf("configure TLS: %w", err))
		}
		clientCfg.TLS = tlsCfg
	}

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, semerr.Network(op, fmt.Errorf("create etcd client: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if _, err := cli.Get(ctx, "health-check"); err != nil {
		_ = cli.Close()
		return nil, semerr.Network(op, fmt.Errorf("etcd health check failed: %w", err))
	}

	e := NewEtcdFromClient(cli, cfg.Namespace, logger)
	e.owned = true
	return e, nil
}

// NewEtcdFromClient wraps an existing client. Close does not close it.
func NewEtcdFromClient(cli *clientv3.Client, namespace string, logger *slog.Logger) *Etcd {
	if logger == nil {
		logger = slog.Default()
	}
	return &Etcd{client: cli, prefix: graphPrefix(namespace), logger: logger}
}

func graphPrefix(namespace string) string {
	if namespace == "" {
		namespace = "semgate"
	}
	return fmt.Sprintf("/%s/graphs/", strings.Trim(namespace, "/"))
}

// Key returns the etcd key holding framework's definition.
func (e *Etcd) Key(framework string) string {
	return e.prefix + graph.FrameworkKey(framework)
}

func (e *Etcd) frameworkOf(key string) string {
	return strings.TrimPrefix(key, e.prefix)
}

// Put stores def under its framework's key.
func (e *Etcd) Put(ctx context.Context, def *graph.Definition) error {
	const op = "graphsource.Etcd.Put"
	if def == nil || strings.TrimSpace(def.Framework) == "" {
		return semerr.Validation(op, errors.New("definition must name its framework"))
	}
	data, err := def.Marshal()
	if err != nil {
		return semerr.Internal(op, err)
	}
	if _, err := e.client.Put(ctx, e.Key(def.Framework), string(data)); err != nil {
		return semerr.Network(op, err)
	}
	return nil
}

// Delete removes framework's definition.
func (e *Etcd) Delete(ctx context.Context, framework string) error {
	if _, err := e.client.Delete(ctx, e.Key(framework)); err != nil {
		return semerr.Network("graphsource.Etcd.Delete", err)
	}
	return nil
}

// Load implements Source.
func (e *Etcd) Load(ctx context.Context) (map[string]*graph.Definition, error) {
	resp, err := e.client.Get(ctx, e.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, semerr.Network("graphsource.Etcd.Load", err)
	}
	defs := make(map[string]*graph.Definition, len(resp.Kvs))
	var errs []error
	for _, kv := range resp.Kvs {
		u := e.decode(string(kv.Key), kv.Value)
		if u.Err != nil {
			errs = append(errs, u.Err)
			continue
		}
		defs[u.Framework] = u.Definition
	}
	return defs, errors.Join(errs...)
}

// decode parses a stored definition. The key decides the framework; a value
// declaring another framework is rejected.
func (e *Etcd) decode(key string, value []byte) Update {
	fw := e.frameworkOf(key)
	def, err := graph.ParseDefinition(value)
	if err != nil {
		return Update{Framework: fw, Err: withSource(err, map[string]any{"framework": fw, "key": key})}
	}
	if def.Framework != "" && graph.FrameworkKey(def.Framework) != fw {
		return Update{Framework: fw, Err: semerr.GraphLoad("graphsource.Etcd", fw,
			fmt.Sprintf("key holds definition for framework %q", def.Framework))}
	}
	if def.Framework == "" {
		def.Framework = fw
	}
	return Update{Framework: fw, Definition: def}
}

// Watch implements Source.
func (e *Etcd) Watch(ctx context.Context) (<-chan Update, error) {
	wch := e.client.Watch(ctx, e.prefix, clientv3.WithPrefix())
	out := make(chan Update, 16)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case resp, ok := <-wch:
				if !ok {
					return
				}
				if err := resp.Err(); err != nil {
					e.logger.Warn("etcd graph watch failed", "prefix", e.prefix, "error", err)
					return
				}
				for _, ev := range resp.Events {
					var u Update
					if ev.Type == clientv3.EventTypeDelete {
						u = Update{Framework: e.frameworkOf(string(ev.Kv.Key))}
					} else {
						u = e.decode(string(ev.Kv.Key), ev.Kv.Value)
					}
					select {
					case out <- u:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Close releases the client if NewEtcd created it.
func (e *Etcd) Close() error {
	if !e.owned {
		return nil
	}
	return e.client.Close()
}
