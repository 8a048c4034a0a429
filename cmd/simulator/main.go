package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/config"
	"github.com/integrityos/pipeline-hub/internal/simulate"
	"github.com/integrityos/pipeline-hub/internal/telemetry"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	client, err := telemetry.Connect(config.MQTTBroker(), fmt.Sprintf("integrityos-sim-%s", uuid.NewString()[:8]))
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := simulate.New(config.SimPipelines())
	pub := telemetry.NewPublisher(client)
	sent := run(ctx, gen, pub, config.SimInterval(), config.SimCount())
	log.Info().Int("published", sent).Msg("simulation done")
}

const defaultInterval = 3 * time.Second

// run publishes one reading per pipeline every interval, for count rounds
// or until ctx ends when count is zero.
func run(ctx context.Context, gen *simulate.Generator, pub *telemetry.Publisher, interval time.Duration, count int) int {
	if interval <= 0 {
		interval = defaultInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	sent := 0
	for round := 0; count == 0 || round < count; round++ {
		for _, id := range gen.Pipelines() {
			r, err := gen.Reading(id)
			if err != nil {
				log.Error().Err(err).Str("pipeline", id).Msg("generate reading")
				continue
			}
			if err := pub.Publish(r); err != nil {
				log.Error().Err(err).Msg("publish failed")
				continue
			}
			sent++
			log.Debug().Str("pipeline", id).Float64("temperature", r.Temperature).Msg("reading published")
		}
		select {
		case <-ctx.Done():
			return sent
		case <-t.C:
		}
	}
	return sent
}
