package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/cloud"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

// Handler evaluates the thickness-loss formula. Invalid input is reported in
// the response body so the caller can tell it apart from a function failure.
func Handler(_ context.Context, in integrity.PredictionInput) (cloud.PredictionResponse, error) {
	p, err := integrity.Predict(in)
	if err != nil {
		log.Warn().Err(err).Msg("rejected prediction input")
		return cloud.PredictionResponse{Error: err.Error()}, nil
	}
	log.Info().Str("risk", string(p.RiskLevel)).Float64("remaining_life", p.RemainingLife).Msg("prediction")
	return cloud.PredictionResponse{Prediction: p}, nil
}

func main() {
	lambda.Start(Handler)
}
