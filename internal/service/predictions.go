package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/repository"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

type PredictionService struct {
	repos    *repository.Repos
	readings *ReadingService
	remote   Predictor
	now      func() time.Time
}

// PipelinePrediction is a prediction for a stored pipeline.
type PipelinePrediction struct {
	PipelineID string                    `json:"pipeline_id"`
	Input      integrity.PredictionInput `json:"input"`
	Prediction integrity.Prediction      `json:"prediction"`
	Reading    domain.SensorReading      `json:"reading"`
	Inspection InspectionPlan            `json:"inspection"`
}

// Predict evaluates the formula, remotely when a predictor is configured.
func (s *PredictionService) Predict(ctx context.Context, in integrity.PredictionInput) (integrity.Prediction, error) {
	if err := in.Validate(); err != nil {
		return integrity.Prediction{}, err
	}
	if s.remote == nil {
		return integrity.Predict(in)
	}
	p, err := s.remote.Predict(ctx, in)
	if err != nil {
		return integrity.Prediction{}, fmt.Errorf("remote prediction: %w", err)
	}
	log.Debug().Str("risk", string(p.RiskLevel)).Msg("remote prediction")
	return p, nil
}

func (s *PredictionService) ForPipeline(ctx context.Context, id string) (PipelinePrediction, error) {
	id = simulate.Normalize(id)
	p, err := s.repos.GetPipeline(ctx, id)
	if err != nil {
		return PipelinePrediction{}, err
	}
	r, err := s.readings.Latest(ctx, id)
	if err != nil {
		return PipelinePrediction{}, err
	}
	in := integrity.InputFromPipeline(p.PipelineSpec, r)
	pred, err := s.Predict(ctx, in)
	if err != nil {
		return PipelinePrediction{}, err
	}
	return PipelinePrediction{
		PipelineID: id,
		Input:      in,
		Prediction: pred,
		Reading:    r,
		Inspection: PlanInspection(p, pred, s.now()),
	}, nil
}
