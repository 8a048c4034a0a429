package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/cloud"
	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/service"
)

// lookback bounds the search for the reading that came before.
const lookback = 24 * time.Hour

type readingSource interface {
	ReadingsBetween(ctx context.Context, pipelineID string, from, to time.Time) ([]domain.SensorReading, error)
}

type handler struct {
	readings   readingSource
	alerts     *service.AlertService
	thresholds integrity.Thresholds
}

// Handle raises an alert for every archived reading whose status differs
// from the previous reading of the same pipeline and is not normal.
func (h *handler) Handle(ctx context.Context, event events.DynamoDBEvent) error {
	log.Info().Int("records", len(event.Records)).Msg("processing stream batch")
	for _, rec := range event.Records {
		if rec.EventName != string(events.DynamoDBOperationTypeInsert) {
			continue
		}
		r, err := cloud.ReadingFromStreamImage(rec.Change.NewImage)
		if err != nil {
			log.Error().Err(err).Str("event", rec.EventID).Msg("skipping record")
			continue
		}
		if err := h.evaluate(ctx, r); err != nil {
			log.Error().Err(err).Str("pipeline", r.PipelineID).Msg("alert evaluation failed")
		}
	}
	return nil
}

func (h *handler) evaluate(ctx context.Context, r domain.SensorReading) error {
	if h.thresholds.Status(r) == domain.StatusNormal {
		return nil
	}
	prev := domain.StatusNormal
	earlier, err := h.readings.ReadingsBetween(ctx, r.PipelineID, r.Timestamp.Add(-lookback), r.Timestamp.Add(-time.Millisecond))
	if err != nil {
		return fmt.Errorf("previous reading: %w", err)
	}
	if n := len(earlier); n > 0 {
		prev = h.thresholds.Status(earlier[n-1])
	}
	_, err = h.alerts.Raise(ctx, r, prev)
	return err
}

func main() {
	region := os.Getenv("AWS_REGION")
	dynamo, err := cloud.NewDynamoDBClient(region, os.Getenv("DYNAMO_ALERTS_TABLE"), os.Getenv("DYNAMO_READINGS_TABLE"))
	if err != nil {
		log.Fatal().Err(err).Msg("dynamodb setup failed")
	}
	var notifier service.Notifier
	if arn := os.Getenv("SNS_TOPIC_ARN"); arn != "" {
		sns, err := cloud.NewSNSClient(region, arn)
		if err != nil {
			log.Fatal().Err(err).Msg("sns setup failed")
		}
		notifier = sns
	}
	th := integrity.DefaultThresholds()
	h := &handler{
		readings:   dynamo,
		alerts:     service.NewAlertService(dynamo, notifier, th, func() time.Time { return time.Now().UTC() }),
		thresholds: th,
	}
	lambda.Start(h.Handle)
}
