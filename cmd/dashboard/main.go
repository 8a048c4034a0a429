package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/apiclient"
	"github.com/integrityos/pipeline-hub/internal/config"
	"github.com/integrityos/pipeline-hub/internal/dashboard"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(config.DashboardAPIURL())
	login := func(ctx context.Context) error {
		_, err := client.Login(ctx, config.DashboardUser(), config.DashboardPassword())
		return err
	}
	if err := login(ctx); err != nil {
		// the poller logs in again once the API is reachable
		log.Warn().Err(err).Str("api", config.DashboardAPIURL()).Msg("initial login failed")
	}

	relay := dashboard.New(client, dashboard.Config{
		Pipelines:  config.DashboardPipelines(),
		Refresh:    config.DashboardRefresh(),
		Thresholds: config.StatusThresholds(),
		Reauth:     login,
	})
	relay.Start(ctx)
	defer relay.Close()

	srv := &http.Server{Addr: config.DashboardAddr(), Handler: relay, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("dashboard listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exit")
	}
}
