package integrity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

func TestStatus(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name string
		r    domain.SensorReading
		want domain.Status
	}{
		{"nominal", domain.SensorReading{Temperature: 42, Pressure: 875, ThicknessLoss: 1.7}, domain.StatusNormal},
		{"on the warning line", domain.SensorReading{Temperature: 45, Pressure: 900, ThicknessLoss: 1.8}, domain.StatusNormal},
		{"warm", domain.SensorReading{Temperature: 45.1, Pressure: 875, ThicknessLoss: 1.7}, domain.StatusWarning},
		{"pressure warning", domain.SensorReading{Temperature: 40, Pressure: 901, ThicknessLoss: 1.7}, domain.StatusWarning},
		{"thin wall warning", domain.SensorReading{Temperature: 40, Pressure: 875, ThicknessLoss: 1.85}, domain.StatusWarning},
		{"hot", domain.SensorReading{Temperature: 50.5, Pressure: 875, ThicknessLoss: 1.7}, domain.StatusCritical},
		{"pressure critical", domain.SensorReading{Temperature: 40, Pressure: 951, ThicknessLoss: 1.0}, domain.StatusCritical},
		{"loss critical", domain.SensorReading{Temperature: 40, Pressure: 800, ThicknessLoss: 2.01}, domain.StatusCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, th.Status(tc.r))
		})
	}
}

func TestCounts(t *testing.T) {
	th := DefaultThresholds()
	got := th.Counts([]domain.SensorReading{
		{Temperature: 40, Pressure: 800},
		{Temperature: 46, Pressure: 800},
		{Temperature: 60, Pressure: 800},
		{Temperature: 41, Pressure: 800},
	})
	assert.Equal(t, 2, got[domain.StatusNormal])
	assert.Equal(t, 1, got[domain.StatusWarning])
	assert.Equal(t, 1, got[domain.StatusCritical])
}

func points(temps ...float64) []domain.HistoryPoint {
	now := time.Now()
	out := make([]domain.HistoryPoint, len(temps))
	for i, v := range temps {
		out[i] = domain.HistoryPoint{Timestamp: now.Add(time.Duration(i) * time.Minute), Temperature: v, Pressure: 100, ThicknessLoss: 1}
	}
	return out
}

func TestComputeTrend(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		assert.Equal(t, Trend{}, ComputeTrend(points(40)))
	})

	t.Run("uses last ten points", func(t *testing.T) {
		// the first two values fall outside the window
		tr := ComputeTrend(points(1, 1, 40, 41, 42, 43, 44, 45, 46, 47, 48, 44))
		assert.InDelta(t, 10.0, tr.Temperature, 1e-9)
		assert.Zero(t, tr.Pressure)
	})

	t.Run("zero baseline", func(t *testing.T) {
		tr := ComputeTrend(points(0, 10))
		assert.Zero(t, tr.Temperature)
	})
}

func TestAssess(t *testing.T) {
	a := Assess("A", Trend{Temperature: 6, Pressure: 2, ThicknessLoss: 0.5})
	assert.Equal(t, RiskAssessment{PipelineID: "A", CorrosionRisk: RiskMedium, TempRisk: RiskHigh, PressureRisk: RiskLow}, a)

	a = Assess("B", Trend{Temperature: 1, Pressure: 7, ThicknessLoss: -1})
	assert.Equal(t, RiskMedium, a.TempRisk)
	assert.Equal(t, RiskHigh, a.PressureRisk)
	assert.Equal(t, RiskLow, a.CorrosionRisk)

	a = Assess("C", Trend{Temperature: -3})
	assert.Equal(t, RiskLow, a.TempRisk)
}

func defaultInput() PredictionInput {
	return PredictionInput{
		PipeSize:         24,
		InitialThickness: 12.7,
		MinThickness:     8.0,
		Material:         "Carbon Steel",
		Grade:            "API 5L X65",
		CorrosionImpact:  15,
		MaterialLoss:     8,
		Condition:        "Good",
		Temperature:      68.5,
		Pressure:         875,
	}
}

func TestPredict(t *testing.T) {
	p, err := Predict(defaultInput())
	require.NoError(t, err)
	assert.InDelta(t, 3.11, p.ThicknessLoss, 1e-9)
	assert.InDelta(t, 9.59, p.CurrentThickness, 1e-9)
	assert.InDelta(t, 5.3, p.RemainingLife, 1e-9)
	assert.Equal(t, RiskMedium, p.RiskLevel)
}

func TestPredictRiskBands(t *testing.T) {
	in := defaultInput()
	in.CorrosionImpact, in.MaterialLoss = 0, 0
	p, err := Predict(in)
	require.NoError(t, err)
	assert.Equal(t, 2.5, p.ThicknessLoss)
	assert.Equal(t, RiskMedium, p.RiskLevel)

	in.CorrosionImpact, in.MaterialLoss = 100, 100
	p, err = Predict(in)
	require.NoError(t, err)
	assert.Equal(t, 7.5, p.ThicknessLoss)
	assert.Equal(t, RiskHigh, p.RiskLevel)
	assert.Zero(t, p.RemainingLife, "remaining life is floored at zero")
}

func TestPredictRejectsBadInput(t *testing.T) {
	bad := []func(*PredictionInput){
		func(in *PredictionInput) { in.InitialThickness = 0 },
		func(in *PredictionInput) { in.MinThickness = 20 },
		func(in *PredictionInput) { in.CorrosionImpact = 120 },
		func(in *PredictionInput) { in.MaterialLoss = -1 },
		func(in *PredictionInput) { in.PipeSize = -5 },
	}
	for _, mutate := range bad {
		in := defaultInput()
		mutate(&in)
		_, err := Predict(in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestYearsToFailure(t *testing.T) {
	spec := domain.PipelineSpec{InitialThickness: 13.87, MinThickness: 8, TimeYears: 21}
	years, ok := YearsToFailure(spec, 1.73)
	require.True(t, ok)
	// rate 1.73/21, remaining 4.14 mm
	assert.InDelta(t, 50.3, years, 1e-9)

	_, ok = YearsToFailure(spec, 0)
	assert.False(t, ok)

	_, ok = YearsToFailure(domain.PipelineSpec{InitialThickness: 10}, 1)
	assert.False(t, ok)

	years, ok = YearsToFailure(domain.PipelineSpec{InitialThickness: 9, MinThickness: 8, TimeYears: 10}, 2)
	require.True(t, ok)
	assert.Zero(t, years)
}

func TestViolations(t *testing.T) {
	th := DefaultThresholds()
	assert.Nil(t, th.Violations(domain.SensorReading{Temperature: 40, Pressure: 800, ThicknessLoss: 1}))

	got := th.Violations(domain.SensorReading{Temperature: 46, Pressure: 910, ThicknessLoss: 1})
	assert.Equal(t, []string{"temperature 46.0 °C above 45", "pressure 910 above 900"}, got)

	// a critical reading reports against the critical limits only
	got = th.Violations(domain.SensorReading{Temperature: 47, Pressure: 800, ThicknessLoss: 2.2})
	assert.Equal(t, []string{"thickness loss 2.20 mm above 2"}, got)
}
