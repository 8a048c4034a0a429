package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/integrityos/pipeline-hub/internal/cloud"
	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/repository"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

// AlertStore persists raised alerts (SQL or DynamoDB).
type AlertStore interface {
	PutAlert(ctx context.Context, a domain.Alert) error
	ListAlerts(ctx context.Context, severity domain.Status) ([]domain.Alert, error)
	AcknowledgeAlert(ctx context.Context, id string, at time.Time) error
}

type Notifier interface {
	NotifyAlert(ctx context.Context, a domain.Alert) error
}

// Archiver keeps a copy of every ingested reading.
type Archiver interface {
	PutReading(ctx context.Context, r domain.SensorReading) error
}

// ReportStore keeps published reports under reports/<pipeline>/.
type ReportStore interface {
	UploadReport(ctx context.Context, key string, data []byte, contentType string) (string, error)
	ListReports(ctx context.Context, prefix string) ([]string, error)
	DownloadFile(ctx context.Context, key string) ([]byte, error)
}

type Predictor interface {
	Predict(ctx context.Context, in integrity.PredictionInput) (integrity.Prediction, error)
}

type ReportTrigger interface {
	TriggerDailyReport(ctx context.Context, function string, ev cloud.DailyReportEvent) error
}

// Options wires optional backends. Nil fields fall back to local behaviour.
type Options struct {
	Generator      *simulate.Generator
	Thresholds     integrity.Thresholds
	SensorMaxAge   time.Duration
	Alerts         AlertStore
	Notifier       Notifier
	Archive        Archiver
	Reports        ReportStore
	Predictor      Predictor
	Trigger        ReportTrigger
	ReportFunction string
	// StreamAlerts leaves transition alerts to the function consuming the
	// archive's change stream. Record then only archives.
	StreamAlerts bool
	Clock        func() time.Time
}

type Services struct {
	Repos       *repository.Repos
	Readings    *ReadingService
	Pipelines   *PipelineService
	Devices     *DeviceService
	Alerts      *AlertService
	Analytics   *AnalyticsService
	Predictions *PredictionService
	Reports     *ReportService
}

func New(db *sqlx.DB, opts Options) *Services {
	repos := repository.New(db)
	if opts.Generator == nil {
		opts.Generator = simulate.New(nil)
	}
	if opts.Thresholds == (integrity.Thresholds{}) {
		opts.Thresholds = integrity.DefaultThresholds()
	}
	if opts.SensorMaxAge <= 0 {
		opts.SensorMaxAge = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Alerts == nil {
		opts.Alerts = repos
	}
	now := func() time.Time { return opts.Clock().UTC() }

	alerts := NewAlertService(opts.Alerts, opts.Notifier, opts.Thresholds, now)
	readings := &ReadingService{
		repos:        repos,
		gen:          opts.Generator,
		maxAge:       opts.SensorMaxAge,
		archive:      opts.Archive,
		alerts:       alerts,
		streamAlerts: opts.StreamAlerts && opts.Archive != nil,
		now:          now,
	}
	pipelines := &PipelineService{repos: repos, readings: readings, thresholds: opts.Thresholds, gen: opts.Generator, now: now}
	devices := &DeviceService{repos: repos, gen: opts.Generator, now: now}
	predictions := &PredictionService{repos: repos, readings: readings, remote: opts.Predictor, now: now}

	return &Services{
		Repos:     repos,
		Readings:  readings,
		Pipelines: pipelines,
		Devices:   devices,
		Alerts:    alerts,
		Analytics: &AnalyticsService{
			repos:      repos,
			readings:   readings,
			thresholds: opts.Thresholds,
			gen:        opts.Generator,
			now:        now,
		},
		Predictions: predictions,
		Reports: &ReportService{
			repos:       repos,
			pipelines:   pipelines,
			readings:    readings,
			predictions: predictions,
			thresholds:  opts.Thresholds,
			store:       opts.Reports,
			trigger:     opts.Trigger,
			function:    opts.ReportFunction,
			now:         now,
		},
	}
}

// Seed inserts the default pipelines and sensor units into an empty store.
func (s *Services) Seed(ctx context.Context) error {
	if err := s.Pipelines.Seed(ctx); err != nil {
		return err
	}
	return s.Devices.Seed(ctx)
}
