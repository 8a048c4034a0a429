package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/broker"
	"github.com/integrityos/pipeline-hub/internal/config"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	b, err := broker.New(config.BrokerAddr())
	if err != nil {
		log.Fatal().Err(err).Msg("broker setup failed")
	}
	if err := b.Start(); err != nil {
		log.Fatal().Err(err).Msg("broker start failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if err := b.Close(); err != nil {
		log.Error().Err(err).Msg("broker close")
	}
	log.Info().Int64("readings", b.Readings()).Int64("rejected", b.Rejected()).Msg("broker stopped")
}
