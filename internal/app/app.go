package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"auction-watch/internal/alerting"
	"auction-watch/internal/api"
	"auction-watch/internal/config"
	"auction-watch/internal/fetcher"
	"auction-watch/internal/monitor"
	"auction-watch/internal/scheduler"
	"auction-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() *fetcher.Superbid {
	return fetcher.NewSuperbid(fetcher.SuperbidOptions{
		ListingBaseURL: a.Config.Source.ListingBaseURL,
		Timeout:        a.Config.Source.RequestTimeout,
		UserAgent:      a.Config.Source.UserAgent,
		RatePerSecond:  a.Config.Source.RatePerSecond,
		RateBurst:      a.Config.Source.RateBurst,
	}, a.Logger)
}

func (a *App) newNotifier(subs storage.SubscriptionStore) alerting.Notifier {
	cfg := a.Config.Telegram
	return alerting.NewTelegramNotifier(subs, cfg.APIBase, cfg.RequestTimeout, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service: it migrates the schema,
// starts the job scheduler, and serves the management API until the context
// is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := storage.Migrate(a.Config.Database.DSN); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	source := a.newFetcher()
	notifier := a.newNotifier(store)
	runner := monitor.NewRunner(source, store, store, notifier, a.Logger)
	manager := scheduler.New(scheduler.Options{
		ReconcileInterval: a.Config.Scheduler.ReconcileInterval,
	}, store, runner, a.Logger)

	server := api.NewServer(store, store, store, store, manager, source, a.Logger)
	httpServer := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.Logger.Info().Str("addr", httpServer.Addr).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer shutdownCancel()

		manager.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	a.Logger.Info().Msg("starting monitoring service")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}
