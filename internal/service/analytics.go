package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"
	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/anomaly"
	"golang.org/x/sync/errgroup"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/repository"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

// smoothingWindow is one hour of ten-minute history points.
const smoothingWindow = 6

// spikeThreshold is in standard deviations over the smoothing window.
const spikeThreshold = 2.0

type AnalyticsService struct {
	repos      *repository.Repos
	readings   *ReadingService
	thresholds integrity.Thresholds
	gen        *simulate.Generator
	now        func() time.Time
}

type PipelineAnalytics struct {
	PipelineID          string                   `json:"pipeline_id"`
	Points              int                      `json:"points"`
	Trend               integrity.Trend          `json:"trend"`
	Risk                integrity.RiskAssessment `json:"risk"`
	AverageTemperature  float64                  `json:"average_temperature"`
	AveragePressure     float64                  `json:"average_pressure"`
	SmoothedTemperature []float64                `json:"smoothed_temperature"`
	TemperatureSpikes   int                      `json:"temperature_spikes"`
}

func (s *AnalyticsService) ids(ids []string) []string {
	if len(ids) == 0 {
		return s.gen.Pipelines()
	}
	return ids
}

func temperaturePoints(data []domain.HistoryPoint) []aggregator.Point {
	pts := make([]aggregator.Point, len(data))
	for i, p := range data {
		pts[i] = aggregator.Point{Value: p.Temperature, Timestamp: p.Timestamp}
	}
	return pts
}

func temperatureSpikes(data []domain.HistoryPoint) int {
	rs := make([]anomaly.Reading, len(data))
	for i, p := range data {
		rs[i] = anomaly.Reading{Consumption: p.Temperature}
	}
	d := &anomaly.AnomalyDetector{Threshold: spikeThreshold, WindowSize: smoothingWindow}
	return len(d.DetectSpikes(rs))
}

func pressurePoints(data []domain.HistoryPoint) []aggregator.Point {
	pts := make([]aggregator.Point, len(data))
	for i, p := range data {
		pts[i] = aggregator.Point{Value: p.Pressure, Timestamp: p.Timestamp}
	}
	return pts
}

// Analyze fetches the histories in parallel and derives trend and risk for each.
func (s *AnalyticsService) Analyze(ctx context.Context, ids []string, hours int) ([]PipelineAnalytics, error) {
	ids = s.ids(ids)
	out := make([]PipelineAnalytics, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			h, err := s.readings.History(ctx, id, hours)
			if err != nil {
				return err
			}
			trend := integrity.ComputeTrend(h.Data)
			temps := temperaturePoints(h.Data)
			out[i] = PipelineAnalytics{
				PipelineID:          h.PipelineID,
				Points:              len(h.Data),
				Trend:               trend,
				Risk:                integrity.Assess(h.PipelineID, trend),
				AverageTemperature:  round1(aggregator.Average(temps)),
				AveragePressure:     math.Round(aggregator.Average(pressurePoints(h.Data))),
				SmoothedTemperature: aggregator.MovingAverage(temps, smoothingWindow),
				TemperatureSpikes:   temperatureSpikes(h.Data),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary reads the latest values of several pipelines in parallel.
func (s *AnalyticsService) Summary(ctx context.Context, ids []string) (domain.Summary, error) {
	ids = s.ids(ids)
	readings := make([]domain.SensorReading, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			r, err := s.readings.Latest(gctx, id)
			if err != nil {
				return err
			}
			readings[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Summary{}, err
	}

	sum := domain.Summary{
		GeneratedAt:  s.now(),
		Pipelines:    make([]domain.PipelineStatus, len(readings)),
		StatusCounts: s.thresholds.Counts(readings),
	}
	temps := make([]aggregator.Point, len(readings))
	pressures := make([]aggregator.Point, len(readings))
	losses := make([]aggregator.Point, len(readings))
	for i, r := range readings {
		sum.Pipelines[i] = domain.PipelineStatus{SensorReading: r, Status: s.thresholds.Status(r)}
		temps[i] = aggregator.Point{Value: r.Temperature, Timestamp: r.Timestamp}
		pressures[i] = aggregator.Point{Value: r.Pressure, Timestamp: r.Timestamp}
		losses[i] = aggregator.Point{Value: r.ThicknessLoss, Timestamp: r.Timestamp}
	}
	if len(readings) > 0 {
		sum.AverageTemperature = round1(aggregator.Average(temps))
		sum.AveragePressure = math.Round(aggregator.Average(pressures))
		sum.AverageThicknessLoss = math.Round(aggregator.Average(losses)*100) / 100
	}

	devices, err := s.repos.ListDevices(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("list devices: %w", err)
	}
	sum.Recommendations = recommend(sum.StatusCounts, devices)
	return sum, nil
}

func recommend(counts map[domain.Status]int, devices []domain.Device) []string {
	var out []string
	if counts[domain.StatusCritical] > 0 {
		out = append(out, fmt.Sprintf("Dispatch an inspection crew to %d pipeline(s) in critical state", counts[domain.StatusCritical]))
	}
	out = append(out, "Continue regular monitoring of all pipeline sensors")
	if counts[domain.StatusWarning] > 0 || counts[domain.StatusCritical] > 0 {
		out = append(out, "Schedule preventive maintenance within 45 days")
	}

	latest := ""
	for _, d := range devices {
		if d.Firmware > latest {
			latest = d.Firmware
		}
	}
	for _, d := range devices {
		if d.Firmware != "" && d.Firmware != latest {
			out = append(out, "Update firmware on devices with outdated versions")
			break
		}
	}
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
