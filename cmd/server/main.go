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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Voice/internal/adapters/booking"
	router "github.com/dkeye/Voice/internal/adapters/http"
	"github.com/dkeye/Voice/internal/app"
	"github.com/dkeye/Voice/internal/app/orch"
	"github.com/dkeye/Voice/internal/auth"
	"github.com/dkeye/Voice/internal/config"
	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/storage/sqlite"
)

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Log)

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	resolver, err := auth.NewJWTResolver(cfg.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build identity resolver")
	}

	var gate core.BookingGate = app.OpenGate{}
	if cfg.Booking.URL != "" {
		g, err := booking.NewGate(cfg.Booking.URL, cfg.Booking.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build booking gate")
		}
		gate = g
	}

	reg := app.NewRegistry(cfg.Registry.LivenessWindow)
	persist := app.NewPersister(cfg.Persist.QueueSize)
	presence := app.NewPresenceReconciler(store, persist, cfg.Presence.SweepInterval, cfg.Presence.StaleAfter)
	limiter := app.NewRateLimiter(cfg.Calls.RateLimit, cfg.Calls.RateInterval)
	calls := app.NewCallManager(app.CallDeps{
		Registry: reg,
		Presence: presence,
		Gate:     gate,
		Notifier: app.TransportNotifier{Registry: reg},
		Limiter:  limiter,
		Persist:  persist,
		Store:    store,
	}, app.CallConfig{
		Timeout:       cfg.Calls.Timeout,
		PresenceGrace: cfg.Presence.Grace,
		Restricted:    cfg.Calls.Restricted,
	})

	o := &orch.Orchestrator{
		Registry:       reg,
		Calls:          calls,
		Rooms:          app.NewRoomTracker(reg),
		Relay:          app.NewSignalRelay(reg),
		Presence:       presence,
		Persist:        persist,
		Limiter:        limiter,
		ExpireInterval: cfg.Registry.ExpireInterval,
	}
	o.Wire()

	if _, err := calls.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("call recovery failed")
	}

	r := router.SetupRouter(ctx, cfg, o, resolver, store)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Voice server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}
	log.Info().Msg("Server exited gracefully")
}
