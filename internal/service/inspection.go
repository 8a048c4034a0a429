package service

import (
	"math"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/maintenance"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

const day = 24 * time.Hour

// InspectionPlan schedules the next wall thickness inspection.
type InspectionPlan struct {
	FailureRisk30Days float64   `json:"failure_risk_30_days"`
	FailureRisk90Days float64   `json:"failure_risk_90_days"`
	NextInspection    time.Time `json:"next_inspection"`
	DaysUntil         int       `json:"days_until_inspection"`
	Recommendation    string    `json:"recommendation"`
}

// failure rate per year and inspection interval by risk level
var inspectionProfile = map[integrity.Risk]struct {
	rate     float64
	interval time.Duration
}{
	integrity.RiskLow:    {rate: 0.1, interval: 365 * day},
	integrity.RiskMedium: {rate: 0.3, interval: 180 * day},
	integrity.RiskHigh:   {rate: 0.6, interval: 30 * day},
}

// PlanInspection feeds the prediction into the maintenance model. The last
// service is the last time the pipeline record was updated.
func PlanInspection(p domain.Pipeline, pred integrity.Prediction, now time.Time) InspectionPlan {
	prof, ok := inspectionProfile[pred.RiskLevel]
	if !ok {
		prof = inspectionProfile[integrity.RiskMedium]
	}
	last := p.UpdatedAt
	if last.IsZero() {
		last = now
	}
	health := maintenance.AssetHealth{
		HoursRun:           p.TimeYears * 365 * 24,
		FailureRatePerYear: prof.rate,
		LastService:        last,
		ServiceInterval:    prof.interval,
	}

	risk30 := maintenance.FailureRisk(health.FailureRatePerYear, 30*day)
	risk90 := maintenance.FailureRisk(health.FailureRatePerYear, 90*day)
	next := maintenance.NextServiceDate(health)
	days := int(math.Ceil(next.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}

	return InspectionPlan{
		FailureRisk30Days: math.Round(risk30*1000) / 10,
		FailureRisk90Days: math.Round(risk90*1000) / 10,
		NextInspection:    next,
		DaysUntil:         days,
		Recommendation:    inspectionAdvice(risk30, pred.RemainingLife),
	}
}

func inspectionAdvice(risk, remainingLife float64) string {
	switch {
	case risk > 0.05 || remainingLife < 1:
		return "URGENT: Schedule ultrasonic thickness inspection immediately"
	case risk > 0.02 || remainingLife < 3:
		return "Schedule inspection within the next 30 days"
	case risk > 0.01 || remainingLife < 5:
		return "Plan inspection within the next 90 days"
	}
	return "Pipeline operating normally"
}
