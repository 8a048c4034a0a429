package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/auth"
	"github.com/integrityos/pipeline-hub/internal/config"
	"github.com/integrityos/pipeline-hub/internal/database"
	httpHandlers "github.com/integrityos/pipeline-hub/internal/http"
	"github.com/integrityos/pipeline-hub/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	opts, err := service.OptionsFromConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("cloud setup failed")
	}
	svcs := service.New(db, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svcs.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	authSvc := auth.NewService(svcs.Repos, config.SessionTTL())
	go sweepSessions(ctx, authSvc, config.SweepInterval())

	app := httpHandlers.NewApp()
	httpHandlers.Register(app, svcs, authSvc)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Msg("api listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server exit")
	}
}

func sweepSessions(ctx context.Context, a *auth.Service, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("removed", n).Msg("expired sessions removed")
			}
		}
	}
}
