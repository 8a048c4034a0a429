package integrity

import "github.com/integrityos/pipeline-hub/internal/domain"

// TrendWindow is the number of most recent history points a trend covers.
const TrendWindow = 10

type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// Trend is the percentage change per parameter between the first and the
// last point of the trend window.
type Trend struct {
	Temperature   float64 `json:"temp_trend"`
	Pressure      float64 `json:"pressure_trend"`
	ThicknessLoss float64 `json:"thickness_trend"`
}

type RiskAssessment struct {
	PipelineID    string `json:"pipeline"`
	CorrosionRisk Risk   `json:"corrosion_risk"`
	TempRisk      Risk   `json:"temp_risk"`
	PressureRisk  Risk   `json:"pressure_risk"`
}

func ComputeTrend(points []domain.HistoryPoint) Trend {
	if len(points) < 2 {
		return Trend{}
	}
	recent := points
	if len(recent) > TrendWindow {
		recent = recent[len(recent)-TrendWindow:]
	}
	first, last := recent[0], recent[len(recent)-1]
	return Trend{
		Temperature:   percentChange(first.Temperature, last.Temperature),
		Pressure:      percentChange(first.Pressure, last.Pressure),
		ThicknessLoss: percentChange(first.ThicknessLoss, last.ThicknessLoss),
	}
}

func percentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func Assess(pipelineID string, t Trend) RiskAssessment {
	a := RiskAssessment{
		PipelineID:    pipelineID,
		CorrosionRisk: RiskLow,
		TempRisk:      RiskLow,
		PressureRisk:  RiskLow,
	}
	if t.ThicknessLoss > 0 {
		a.CorrosionRisk = RiskMedium
	}
	switch {
	case t.Temperature > 5:
		a.TempRisk = RiskHigh
	case t.Temperature > 0:
		a.TempRisk = RiskMedium
	}
	if t.Pressure > 5 {
		a.PressureRisk = RiskHigh
	}
	return a
}
