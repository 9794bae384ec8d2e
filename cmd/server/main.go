package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/config"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/httpapi"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/hub"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/logging"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/maps"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/players"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store/postgres"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	recorder := store.NewRecorder(st, 64, log)
	dir := players.NewDirectory(log)
	h := hub.NewHub(ctx, hub.Options{
		Players:    dir,
		Log:        log,
		OnResolved: recorder.Submit,
	})
	defer h.Shutdown()

	reg := maps.NewRegistry(st, h, log)
	if err := reg.Load(ctx, store.Settings{
		Countdown:  cfg.DefaultCountdown,
		ServerName: cfg.ServerName,
	}); err != nil {
		return fmt.Errorf("load arenas: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:        h,
			Maps:       reg,
			Players:    dir,
			History:    st,
			AdminToken: cfg.AdminToken,
			Log:        log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return recorder.Run(gctx)
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
}
