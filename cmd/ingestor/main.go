package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/config"
	"github.com/integrityos/pipeline-hub/internal/database"
	"github.com/integrityos/pipeline-hub/internal/service"
	"github.com/integrityos/pipeline-hub/internal/telemetry"
)

func main() {
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

	clientID := config.MQTTClientID()
	if clientID == "" {
		clientID = fmt.Sprintf("integrityos-ingestor-%s", uuid.NewString()[:8])
	}
	client, err := telemetry.Connect(config.MQTTBroker(), clientID)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	if err := telemetry.Subscribe(client, svcs.Readings.FromMQTT); err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info().Str("topic", telemetry.SubscriptionTopic).Msg("ingestor running; Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("ingestor stopped")
}
