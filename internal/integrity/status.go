// Package integrity holds the pipeline integrity rules: reading status,
// trend and risk, the thickness-loss prediction formula and years to failure.
// Every view and process evaluates readings through this package.
package integrity

import (
	"fmt"
	"math"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

// Limit is an upper bound per measured parameter; a reading strictly above
// any field crosses the limit.
type Limit struct {
	Temperature   float64
	Pressure      float64
	ThicknessLoss float64
}

func (l Limit) exceededBy(r domain.SensorReading) bool {
	return r.Temperature > l.Temperature || r.Pressure > l.Pressure || r.ThicknessLoss > l.ThicknessLoss
}

type Thresholds struct {
	Warning  Limit
	Critical Limit
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Warning:  Limit{Temperature: 45, Pressure: 900, ThicknessLoss: 1.8},
		Critical: Limit{Temperature: 50, Pressure: 950, ThicknessLoss: 2.0},
	}
}

func (t Thresholds) Status(r domain.SensorReading) domain.Status {
	switch {
	case t.Critical.exceededBy(r):
		return domain.StatusCritical
	case t.Warning.exceededBy(r):
		return domain.StatusWarning
	}
	return domain.StatusNormal
}

// Violations describes each parameter of r above the limit for its status.
func (t Thresholds) Violations(r domain.SensorReading) []string {
	var l Limit
	switch t.Status(r) {
	case domain.StatusCritical:
		l = t.Critical
	case domain.StatusWarning:
		l = t.Warning
	default:
		return nil
	}
	var out []string
	if r.Temperature > l.Temperature {
		out = append(out, fmt.Sprintf("temperature %.1f °C above %g", r.Temperature, l.Temperature))
	}
	if r.Pressure > l.Pressure {
		out = append(out, fmt.Sprintf("pressure %.0f above %g", r.Pressure, l.Pressure))
	}
	if r.ThicknessLoss > l.ThicknessLoss {
		out = append(out, fmt.Sprintf("thickness loss %.2f mm above %g", r.ThicknessLoss, l.ThicknessLoss))
	}
	return out
}

// Counts tallies the readings per status.
func (t Thresholds) Counts(readings []domain.SensorReading) map[domain.Status]int {
	out := map[domain.Status]int{
		domain.StatusNormal:   0,
		domain.StatusWarning:  0,
		domain.StatusCritical: 0,
	}
	for _, r := range readings {
		out[t.Status(r)]++
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
