package integrity

import (
	"fmt"
	"math"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

// Wall loss assumed per year when estimating remaining life, in mm.
const annualWallLoss = 0.3

type PredictionInput struct {
	PipeSize         float64 `json:"pipeSize"`
	InitialThickness float64 `json:"initialThickness"`
	MinThickness     float64 `json:"minThickness"`
	Material         string  `json:"material"`
	Grade            string  `json:"grade"`
	CorrosionImpact  float64 `json:"corrosionImpact"`
	MaterialLoss     float64 `json:"materialLoss"`
	Condition        string  `json:"condition"`
	Temperature      float64 `json:"temperature"`
	Pressure         float64 `json:"pressure"`
}

type Prediction struct {
	ThicknessLoss    float64 `json:"thicknessLoss"`
	CurrentThickness float64 `json:"currentThickness"`
	RemainingLife    float64 `json:"remainingLife"`
	RiskLevel        Risk    `json:"riskLevel"`
}

// InputFromPipeline builds a prediction input from stored parameters and a
// live reading.
func InputFromPipeline(spec domain.PipelineSpec, r domain.SensorReading) PredictionInput {
	return PredictionInput{
		PipeSize:         spec.PipeSize,
		InitialThickness: spec.InitialThickness,
		MinThickness:     spec.MinThickness,
		Material:         spec.Material,
		Grade:            spec.Grade,
		CorrosionImpact:  spec.CorrosionImpact,
		MaterialLoss:     spec.MaterialLoss,
		Condition:        spec.Condition,
		Temperature:      r.Temperature,
		Pressure:         r.Pressure,
	}
}

func (in PredictionInput) Validate() error {
	switch {
	case in.PipeSize < 0:
		return fmt.Errorf("%w: pipe size must not be negative", domain.ErrInvalidInput)
	case in.InitialThickness <= 0:
		return fmt.Errorf("%w: initial thickness must be positive", domain.ErrInvalidInput)
	case in.MinThickness < 0 || in.MinThickness > in.InitialThickness:
		return fmt.Errorf("%w: minimum thickness must be between 0 and the initial thickness", domain.ErrInvalidInput)
	case in.CorrosionImpact < 0 || in.CorrosionImpact > 100:
		return fmt.Errorf("%w: corrosion impact must be a percentage", domain.ErrInvalidInput)
	case in.MaterialLoss < 0 || in.MaterialLoss > 100:
		return fmt.Errorf("%w: material loss must be a percentage", domain.ErrInvalidInput)
	}
	return nil
}

// Predict evaluates the fixed thickness-loss formula.
func Predict(in PredictionInput) (Prediction, error) {
	if err := in.Validate(); err != nil {
		return Prediction{}, err
	}
	loss := round(2.5+in.CorrosionImpact/100*3+in.MaterialLoss/100*2, 2)
	current := in.InitialThickness - loss
	remaining := math.Max(0, round((current-in.MinThickness)/annualWallLoss, 1))

	risk := RiskLow
	switch {
	case loss > 3.5:
		risk = RiskHigh
	case loss > 2.0:
		risk = RiskMedium
	}
	return Prediction{
		ThicknessLoss:    loss,
		CurrentThickness: round(current, 2),
		RemainingLife:    remaining,
		RiskLevel:        risk,
	}, nil
}

// YearsToFailure extrapolates the observed loss rate over the service time
// down to the minimum allowed thickness. ok is false when no rate can be
// derived.
func YearsToFailure(spec domain.PipelineSpec, loss float64) (years float64, ok bool) {
	if loss <= 0 || spec.TimeYears <= 0 {
		return 0, false
	}
	rate := loss / spec.TimeYears
	remaining := (spec.InitialThickness - loss) - spec.MinThickness
	return math.Max(0, round(remaining/rate, 1)), true
}
