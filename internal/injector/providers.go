// Package injector wires a mapsync engine from configuration.
package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/mapsync/internal/config"
	"github.com/zeusync/mapsync/internal/core/events/channel"
	"github.com/zeusync/mapsync/internal/core/events/emissions"
	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
	"github.com/zeusync/mapsync/internal/core/protocol/nats"
	"github.com/zeusync/mapsync/internal/core/protocol/transports"
	"github.com/zeusync/mapsync/internal/core/reconcile"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/storage"
	"github.com/zeusync/mapsync/internal/core/storage/httpapi"
	"github.com/zeusync/mapsync/internal/core/storage/sqlite"
	"github.com/zeusync/mapsync/internal/core/store"
	"github.com/zeusync/mapsync/internal/core/viewport"
	"github.com/zeusync/mapsync/internal/engine"
)

// Hooks are the caller supplied parts of the engine options.
type Hooks struct {
	Launcher engine.Launcher
	OnQuit   func()
}

// App is everything cmd/mapsync needs to run the map.
type App struct {
	Config config.Config
	Logger *log.Logger
	Loop   *loop.Loop
	Engine *engine.Engine
	// Broker is nil unless the embedded NATS broker is enabled.
	Broker *nats.Broker
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideLoop,
	wire.Bind(new(loop.Scheduler), new(*loop.Loop)),
	ProvideLister,
	store.New,
	ProvideViewport,
	wire.Bind(new(render.View), new(*viewport.Controller)),
	render.NewSurface,
	ProvideReconciler,
	ProvideBroker,
	ProvideTransport,
	channel.New,
	ProvideOptions,
	engine.New,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.NewWithOutput(cfg.Level(), cfg.LogOutputs()...)
}

func ProvideLoop(cfg config.Config, logger log.Log) *loop.Loop {
	return loop.New(cfg.LoopConfig(), logger)
}

func ProvideViewport(cfg config.Config) *viewport.Controller {
	return viewport.New(cfg.ViewportConfig())
}

func ProvideReconciler(st *store.Store, surface *render.Surface, cfg config.Config, logger log.Log) (*reconcile.Reconciler, error) {
	return reconcile.New(st, surface, cfg.ReconcileConfig(), logger)
}

// ProvideLister opens the configured catalog.
func ProvideLister(cfg config.Config, logger log.Log) (storage.Lister, func(), error) {
	switch cfg.Catalog.Kind {
	case config.CatalogSQLite:
		db, err := sqlite.Open(cfg.Catalog.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		client, err := httpClient(cfg.Catalog.BaseURL, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
}

func httpClient(baseURL string, cfg config.Config, logger log.Log) (*httpapi.Client, error) {
	opts := []httpapi.Option{httpapi.WithLogger(logger)}
	if cfg.Catalog.PageSize > 0 {
		opts = append(opts, httpapi.WithPageSize(cfg.Catalog.PageSize))
	}
	for k, v := range cfg.Catalog.Headers {
		opts = append(opts, httpapi.WithHeader(k, v))
	}
	return httpapi.New(baseURL, opts...)
}

// ProvideBroker starts the embedded NATS broker when configured.
func ProvideBroker(cfg config.Config, logger log.Log) (*nats.Broker, func(), error) {
	if !cfg.Channel.EmbeddedBroker {
		return nil, func() {}, nil
	}
	var opts []nats.BrokerOpt
	if cfg.Channel.BrokerPort != 0 {
		opts = append(opts, nats.WithPort(cfg.Channel.BrokerPort))
	}
	broker, err := nats.NewBroker(logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err = broker.Start(); err != nil {
		return nil, nil, err
	}
	return broker, broker.Shutdown, nil
}

func ProvideTransport(cfg config.Config, broker *nats.Broker, logger log.Log) (protocol.Transport, error) {
	tc := cfg.TransportConfig()
	if broker != nil {
		tc.URL = broker.ClientURL()
	}
	return transports.New(tc, logger)
}

// ProvideOptions adds the configured joiner and extensions to hooks.
func ProvideOptions(cfg config.Config, logger log.Log, hooks Hooks) (engine.Options, error) {
	opts := engine.Options{Launcher: hooks.Launcher, OnQuit: hooks.OnQuit}
	if cfg.Join.Enabled {
		client, err := httpClient(cfg.JoinBaseURL(), cfg, logger)
		if err != nil {
			return engine.Options{}, err
		}
		opts.Joiner = client
	}
	if cfg.Emissions.Enabled {
		opts.Extensions = append(opts.Extensions, emissions.New(cfg.EmissionsConfig(), logger))
	}
	return opts, nil
}
