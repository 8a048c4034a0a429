package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/cloud"
	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/report"
	"github.com/integrityos/pipeline-hub/internal/service"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

type readingSource interface {
	ReadingsBetween(ctx context.Context, pipelineID string, from, to time.Time) ([]domain.SensorReading, error)
}

type reportStore interface {
	UploadReport(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Response struct {
	PipelineID string                `json:"pipeline_id"`
	Date       string                `json:"date"`
	Readings   int                   `json:"readings"`
	Counts     map[domain.Status]int `json:"status_counts"`
	Key        string                `json:"key"`
	URL        string                `json:"url"`
}

type handler struct {
	readings   readingSource
	store      reportStore
	thresholds integrity.Thresholds
	now        func() time.Time
}

// daily condenses a day of readings: mean temperature and pressure, worst
// thickness loss, time of the last sample.
func daily(rs []domain.SensorReading) domain.SensorReading {
	temps := make([]aggregator.Point, len(rs))
	pressures := make([]aggregator.Point, len(rs))
	out := domain.SensorReading{PipelineID: rs[0].PipelineID}
	for i, r := range rs {
		temps[i] = aggregator.Point{Value: r.Temperature, Timestamp: r.Timestamp}
		pressures[i] = aggregator.Point{Value: r.Pressure, Timestamp: r.Timestamp}
		out.ThicknessLoss = max(out.ThicknessLoss, r.ThicknessLoss)
		if r.Timestamp.After(out.Timestamp) {
			out.Timestamp = r.Timestamp
		}
	}
	out.Temperature = math.Round(aggregator.Average(temps)*10) / 10
	out.Pressure = math.Round(aggregator.Average(pressures))
	return out
}

func (h *handler) Handle(ctx context.Context, ev cloud.DailyReportEvent) (Response, error) {
	id := simulate.Normalize(ev.PipelineID)
	if id == "" {
		return Response{}, fmt.Errorf("%w: pipeline_id is required", domain.ErrInvalidInput)
	}
	day := h.now().UTC().Truncate(24 * time.Hour)
	if ev.Date != "" {
		d, err := time.Parse("2006-01-02", ev.Date)
		if err != nil {
			return Response{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidInput)
		}
		day = d
	}

	rs, err := h.readings.ReadingsBetween(ctx, id, day, day.Add(24*time.Hour-time.Millisecond))
	if err != nil {
		return Response{}, fmt.Errorf("load readings: %w", err)
	}
	if len(rs) == 0 {
		return Response{}, fmt.Errorf("%w: no readings for %s on %s", domain.ErrNotFound, id, day.Format("2006-01-02"))
	}

	reading := daily(rs)
	p := domain.Pipeline{ID: id, PipelineSpec: service.DefaultSpec}
	pred, err := integrity.Predict(integrity.InputFromPipeline(p.PipelineSpec, reading))
	if err != nil {
		return Response{}, err
	}
	data := report.Data{
		Date:       day,
		Pipeline:   p,
		Reading:    reading,
		Status:     h.thresholds.Status(reading),
		Prediction: pred,
	}
	if ytf, ok := integrity.YearsToFailure(p.PipelineSpec, reading.ThicknessLoss); ok {
		data.YearsToFailure = &ytf
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, report.Build(data), report.FormatDOCX); err != nil {
		return Response{}, fmt.Errorf("render report: %w", err)
	}
	key := path.Join("reports", id, report.FileName(day, report.FormatDOCX))
	url, err := h.store.UploadReport(ctx, key, buf.Bytes(), report.FormatDOCX.ContentType())
	if err != nil {
		return Response{}, err
	}

	log.Info().Str("pipeline", id).Str("key", key).Int("readings", len(rs)).Msg("daily report stored")
	return Response{
		PipelineID: id,
		Date:       day.Format("2006-01-02"),
		Readings:   len(rs),
		Counts:     h.thresholds.Counts(rs),
		Key:        key,
		URL:        url,
	}, nil
}

func main() {
	region := os.Getenv("AWS_REGION")
	dynamo, err := cloud.NewDynamoDBClient(region, os.Getenv("DYNAMO_ALERTS_TABLE"), os.Getenv("DYNAMO_READINGS_TABLE"))
	if err != nil {
		log.Fatal().Err(err).Msg("dynamodb setup failed")
	}
	store, err := cloud.NewS3Client(region, os.Getenv("AWS_S3_BUCKET"))
	if err != nil {
		log.Fatal().Err(err).Msg("s3 setup failed")
	}
	h := &handler{readings: dynamo, store: store, thresholds: integrity.DefaultThresholds(), now: time.Now}
	lambda.Start(h.Handle)
}
