package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/repository"
	"github.com/integrityos/pipeline-hub/internal/simulate"
	"github.com/integrityos/pipeline-hub/internal/telemetry"
)

type ReadingService struct {
	repos        *repository.Repos
	gen          *simulate.Generator
	maxAge       time.Duration
	archive      Archiver
	alerts       *AlertService
	streamAlerts bool
	now          func() time.Time
}

// Latest prefers a stored reading younger than the max age, then a
// generated one, then a stale stored one.
func (s *ReadingService) Latest(ctx context.Context, pipelineID string) (domain.SensorReading, error) {
	id := simulate.Normalize(pipelineID)

	stored, err := s.repos.LatestReading(ctx, id)
	switch {
	case err == nil:
		if s.now().Sub(stored.Timestamp) <= s.maxAge {
			return stored, nil
		}
	case !errors.Is(err, domain.ErrNotFound):
		return domain.SensorReading{}, fmt.Errorf("latest reading %s: %w", id, err)
	}

	if s.gen.Known(id) {
		return s.gen.Reading(id)
	}
	if err == nil {
		return stored, nil
	}
	return domain.SensorReading{}, fmt.Errorf("%w: %q", domain.ErrUnknownPipeline, id)
}

func (s *ReadingService) History(_ context.Context, pipelineID string, hours int) (domain.History, error) {
	return s.gen.History(pipelineID, hours)
}

// Record stores a reading, marks its device as seen and evaluates alerts.
func (s *ReadingService) Record(ctx context.Context, r domain.SensorReading) (domain.SensorReading, error) {
	r.PipelineID = simulate.Normalize(r.PipelineID)
	r.DeviceID = normalizeDeviceID(r.DeviceID)
	if r.PipelineID == "" {
		return r, fmt.Errorf("%w: pipeline id is required", domain.ErrInvalidInput)
	}
	if r.Temperature == 0 && r.Pressure == 0 && r.ThicknessLoss == 0 {
		return r, fmt.Errorf("%w: reading carries no measurements", domain.ErrInvalidInput)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	r.Timestamp = r.Timestamp.UTC()

	if err := s.repos.InsertReading(ctx, &r); err != nil {
		return r, fmt.Errorf("store reading: %w", err)
	}

	if r.DeviceID != "" {
		err := s.repos.SetDeviceStatus(ctx, r.DeviceID, domain.DeviceOnline, r.Timestamp)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("device", r.DeviceID).Msg("failed to update device")
		}
	}
	if s.archive != nil {
		if err := s.archive.PutReading(ctx, r); err != nil {
			log.Error().Err(err).Str("pipeline", r.PipelineID).Msg("archive reading failed")
		}
	}
	if s.streamAlerts {
		return r, nil
	}
	if _, err := s.alerts.Evaluate(ctx, r); err != nil {
		log.Error().Err(err).Str("pipeline", r.PipelineID).Msg("alert evaluation failed")
	}
	return r, nil
}

func (s *ReadingService) FromMQTT(topic string, payload []byte) error {
	r, err := telemetry.Decode(topic, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = s.Record(ctx, r)
	return err
}
