// Package app assembles the registry backend from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/akash768145s/BlockCred-sub000/internal/chain"
	"github.com/akash768145s/BlockCred-sub000/internal/config"
	"github.com/akash768145s/BlockCred-sub000/internal/events"
	"github.com/akash768145s/BlockCred-sub000/internal/graph"
	"github.com/akash768145s/BlockCred-sub000/internal/journal"
	"github.com/akash768145s/BlockCred-sub000/internal/logging"
	"github.com/akash768145s/BlockCred-sub000/internal/metrics"
	"github.com/akash768145s/BlockCred-sub000/internal/registry"
	"github.com/akash768145s/BlockCred-sub000/internal/repository"
	"github.com/akash768145s/BlockCred-sub000/internal/server"
	"github.com/akash768145s/BlockCred-sub000/internal/service"
)

// App is a fully wired backend.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Ledger     service.Ledger
	Service    *service.CertificateService
	Registry   *registry.Registry
	Projection *repository.Repository
	Dispatcher *events.Dispatcher
	Handler    http.Handler

	probes  map[string]server.HealthService
	closers []func(context.Context) error
}

// Build connects every configured backend. On error, anything opened so far
// is closed.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		probes:  make(map[string]server.HealthService),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if cfg.Graph.Enabled() {
		if err := a.openProjection(ctx); err != nil {
			return nil, err
		}
	}

	var source events.Source
	switch cfg.Chain.Mode {
	case config.LedgerChain:
		receipts, err := a.openChain(ctx)
		if err != nil {
			return nil, err
		}
		source = receipts
	default:
		if err := a.openSimulator(ctx); err != nil {
			return nil, err
		}
		source = a.Registry
	}

	a.Service = service.NewCertificateService(service.Instrument(a.Ledger, a.Metrics), service.Options{
		EnforceRoles: cfg.Registry.EnforceRoles,
		CacheSize:    cfg.Registry.VerifyCacheSize,
		CacheTTL:     cfg.Registry.VerifyCacheTTL,
		Logger:       logging.Component(logger, "certificates"),
	})

	sinks := []events.Sink{events.NewCacheSink(a.Service)}
	if a.Projection != nil {
		sinks = append(sinks, events.NewProjectionSink(a.Projection))
	}
	if cfg.Events.Enabled() {
		sink, err := events.DialAMQPSink(ctx, cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.RoutingPrefix, logging.Component(logger, "amqp"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return sink.Close() })
		sinks = append(sinks, sink)
	}

	var start uint64
	if a.Registry != nil {
		if start, err = a.rebuildProjection(ctx); err != nil {
			return nil, err
		}
	}
	a.Dispatcher = events.NewDispatcher(source, sinks,
		events.WithLogger(logging.Component(logger, "dispatcher")),
		events.WithObserver(a.Metrics),
		events.WithStartSeq(start),
	)

	a.Handler = a.buildRouter()
	return a, nil
}

func (a *App) openProjection(ctx context.Context) error {
	cfg := a.Config.Graph
	client, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.URI,
		Database:       cfg.Database,
		Username:       cfg.Username,
		Password:       cfg.Password,
		MaxConnections: cfg.MaxConnections,
	})
	if err != nil {
		return fmt.Errorf("connect graph: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.probes["graph"] = server.GraphHealthService{Client: client}

	a.Projection = repository.New(client)
	if err := a.Projection.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("graph schema: %w", err)
	}
	return nil
}

func (a *App) openSimulator(ctx context.Context) error {
	cfg := a.Config.Registry
	var j journal.Journal
	switch cfg.Journal {
	case config.JournalMongo:
		mj, err := journal.NewMongoJournal(ctx, journal.MongoOptions{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			return fmt.Errorf("connect journal: %w", err)
		}
		j = mj
	default:
		j = journal.NewMemoryJournal()
	}
	a.closers = append(a.closers, j.Close)
	a.probes["journal"] = server.ProbeFunc(j.Ping)

	reg := registry.New(cfg.Admin,
		registry.WithJournal(j),
		registry.WithLogger(logging.Component(a.Logger, "registry")),
	)
	restored, err := reg.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore registry: %w", err)
	}
	a.Logger.Info("registry restored", "calls", restored, "journal", cfg.Journal, "admin", cfg.Admin.Hex())

	a.Registry = reg
	a.Ledger = service.NewSimulator(reg)
	a.Metrics.RegisterLedgerGauges(
		func() float64 { return float64(reg.Height()) },
		func() float64 { return float64(reg.TotalCertificates()) },
		func() float64 { return float64(reg.IssuerCount()) },
	)
	return nil
}

// openChain binds the deployed contract. Mined receipts feed the returned
// log, which stands in for the registry's own event log.
func (a *App) openChain(ctx context.Context) (*events.ReceiptLog, error) {
	cfg := a.Config.Chain
	client, err := chain.Dial(ctx, chain.Options{
		RPCURL:          cfg.RPCURL,
		ContractAddress: cfg.ContractAddress,
		PrivateKey:      cfg.PrivateKey,
		TxTimeout:       cfg.TxTimeout,
		Logger:          logging.Component(a.Logger, "chain"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect chain: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		client.Close()
		return nil
	})
	a.probes["chain"] = server.ProbeFunc(client.Ping)

	receipts := events.NewReceiptLog(0)
	a.Ledger = service.Record(client, receipts)
	a.Logger.Info("using on-chain ledger", "contract", client.Address().Hex(), "signer", client.Signer().Hex())
	return receipts, nil
}

// rebuildProjection replays restored events into the graph projection only and
// returns the sequence number the live dispatcher should start after, so
// restored events are not published again.
func (a *App) rebuildProjection(ctx context.Context) (uint64, error) {
	var sinks []events.Sink
	if a.Projection != nil {
		sinks = append(sinks, events.NewProjectionSink(a.Projection))
	}
	replay := events.NewDispatcher(a.Registry, sinks, events.WithLogger(logging.Component(a.Logger, "replay")))
	for replay.Drain(ctx) > 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	return replay.Cursor(), nil
}

func (a *App) buildRouter() http.Handler {
	var (
		eventLog server.EventLog
		reader   server.GraphReader
	)
	if a.Registry != nil {
		eventLog = a.Registry
	}
	if a.Projection != nil {
		reader = a.Projection
	}

	deps := server.RouterDependencies{
		API:              server.NewAPIHandlers(logging.Component(a.Logger, "http"), a.Service, eventLog, reader),
		Probes:           a.probes,
		Metrics:          a.Metrics,
		AllowedOrigins:   a.Config.HTTP.AllowedOrigins(),
		AllowCredentials: true,
		APIToken:         a.Config.HTTP.APIToken,
	}
	if a.Config.HTTP.MetricsEnabled {
		deps.MetricsHandler = a.Metrics.Handler()
	}
	return server.NewRouter(a.Logger, deps)
}

// Run drives the event dispatcher until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases backends in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
