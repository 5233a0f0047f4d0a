// Package app provides the top-level application lifecycle for the predictd
// daemon. It wires the token ledger, authorizer, market engine, event sinks,
// and API server together and runs them until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/predictlabs/predictd/internal/auth"
	"github.com/predictlabs/predictd/internal/config"
	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/engine"
	"github.com/predictlabs/predictd/internal/fixedpoint"
	"github.com/predictlabs/predictd/internal/notify"
	"github.com/predictlabs/predictd/internal/server"
	"github.com/predictlabs/predictd/internal/server/handler"
	"github.com/predictlabs/predictd/internal/server/ws"
	"github.com/predictlabs/predictd/internal/service"
	"github.com/predictlabs/predictd/internal/token"
)

// shutdownGrace bounds how long in-flight HTTP requests may run after a
// shutdown signal.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// background goroutines and the API server, and blocks until the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting daemon",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Token ledger with bootstrap balances.
	ledger := token.NewLedger(common.HexToAddress(a.cfg.Engine.Treasury))
	for addr, amount := range a.cfg.Ledger.Bootstrap {
		if amount > 0 {
			ledger.Mint(common.HexToAddress(addr), fixedpoint.Tokens(uint64(amount)))
		}
	}

	// Static capability grants.
	authz := auth.NewStatic(common.HexToAddress(a.cfg.Auth.Owner))
	for _, addr := range a.cfg.Auth.Creators {
		authz.Grant(common.HexToAddress(addr), domain.CapCreateMarket)
	}
	for _, addr := range a.cfg.Auth.Validators {
		authz.Grant(common.HexToAddress(addr), domain.CapValidateMarket)
	}
	for _, addr := range a.cfg.Auth.Resolvers {
		authz.Grant(common.HexToAddress(addr), domain.CapResolveMarket)
	}

	// The engine needs its sink at construction, but the recorder and
	// archiver snapshot through the engine. A deferred sink breaks the
	// cycle: the engine publishes into it, and the real sinks are attached
	// once the engine exists.
	sink := &deferredSink{}

	eng := engine.New(engine.Params{
		FeeBps:               uint64(a.cfg.Engine.FeeBps),
		SwapFeeBps:           uint64(a.cfg.Engine.SwapFeeBps),
		MinDuration:          a.cfg.Engine.MinDuration.Duration,
		MaxDuration:          a.cfg.Engine.MaxDuration.Duration,
		MinEarlyResolveDelay: a.cfg.Engine.MinEarlyResolveDelay.Duration,
		MaxOptions:           a.cfg.Engine.MaxOptions,
		PriceHistoryLimit:    a.cfg.Engine.PriceHistoryLimit,
		TradeTailLimit:       a.cfg.Engine.TradeTailLimit,
		Treasury:             common.HexToAddress(a.cfg.Engine.Treasury),
	}, ledger, authz, sink, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	var sinks domain.MultiSink
	var recorder *service.Recorder

	if deps.EventBus != nil {
		sinks = append(sinks, service.NewBroadcaster(deps.EventBus, a.logger))
	}
	if deps.PriceCache != nil {
		sinks = append(sinks, service.NewPriceKeeper(deps.PriceCache, a.logger))
	}
	if deps.MarketStore != nil && deps.TradeStore != nil {
		recorder = service.NewRecorder(deps.MarketStore, deps.TradeStore, eng, a.logger)
		sinks = append(sinks, recorder)
		g.Go(func() error { return recorder.Run(ctx) })
	}
	if deps.BlobWriter != nil {
		sinks = append(sinks, service.NewArchiver(deps.BlobWriter, eng, a.logger))
	}

	var senders []notify.Sender
	if a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID))
	}
	if a.cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(a.cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		notifier := notify.NewNotifier(senders, a.cfg.Notify.Events, a.logger)
		sinks = append(sinks, service.NewAlerter(notifier))
	}

	sink.attach(sinks)

	// API server and WebSocket hub.
	if a.cfg.Server.Enabled {
		var hub *ws.Hub
		if deps.EventBus != nil {
			hub = ws.NewHub(deps.EventBus, a.logger)
			g.Go(func() error { return hub.Run(ctx) })
		}

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		}, server.Handlers{
			Health:  handler.NewHealthHandler(deps.HealthChecks, a.logger),
			Markets: handler.NewMarketHandler(eng, a.logger),
			Trades:  handler.NewTradeHandler(eng, deps.TradeStore, a.logger),
			Users:   handler.NewUserHandler(eng, a.logger),
			Stats:   handler.NewStatsHandler(eng, a.logger),
		}, hub, deps.RateLimiter, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return ctx.Err()
		})
	}

	a.logger.InfoContext(ctx, "daemon running",
		slog.Int("markets", eng.MarketCount()),
		slog.Bool("postgres", deps.MarketStore != nil),
		slog.Bool("redis", deps.EventBus != nil),
		slog.Bool("s3", deps.BlobWriter != nil),
		slog.Bool("server", a.cfg.Server.Enabled),
	)

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down daemon")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// deferredSink forwards events to sinks attached after construction. Events
// published before attach are dropped; nothing trades before wiring is done.
type deferredSink struct {
	inner domain.EventSink
}

func (d *deferredSink) attach(s domain.EventSink) {
	d.inner = s
}

func (d *deferredSink) Publish(ctx context.Context, ev domain.Event) {
	if d.inner != nil {
		d.inner.Publish(ctx, ev)
	}
}
