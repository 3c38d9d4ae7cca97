// Command directoryd serves the lobby directory and the relay service over HTTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/VissentvNoord/lobby-system/internal/config"
	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/httpapi"
	"github.com/VissentvNoord/lobby-system/internal/hub"
	"github.com/VissentvNoord/lobby-system/internal/logging"
	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/internal/store"
	"github.com/VissentvNoord/lobby-system/internal/ws"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("directoryd stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Server, logger *zap.Logger) (err error) {
	opts := hub.Options{TTL: cfg.LobbyTTL, Logger: logger.Named("hub")}
	if cfg.PostgresDSN != "" {
		pg, openErr := store.Open(cfg.PostgresDSN)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, pg.Close()) }()
		opts.Store = pg
	}

	// The hub and bridge outlive ctx so shutdown can still reach them.
	serveCtx, cancelServe := context.WithCancel(context.Background())
	defer cancelServe()

	h := hub.NewHub(serveCtx, opts)
	restored, err := h.Restore(ctx)
	if err != nil {
		return err
	}
	if restored > 0 {
		logger.Info("restored lobbies", zap.Int("count", restored))
	}

	reg := relay.NewRegistry(relay.RegistryOptions{TTL: cfg.RelayTTL, Logger: logger})
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Directory: directory.NewService(h, logger),
		Relay:     reg,
		Bridge:    ws.NewBridge(serveCtx, reg, logger),
		Limiter:   httpapi.NewRateLimiter(cfg.RatePerSecond, cfg.RateBurst),
		Registry:  promReg,
		Logger:    logger,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// Lobbies flush to the store before the hub goes away.
		return multierr.Combine(srv.Shutdown(shutdownCtx), h.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
