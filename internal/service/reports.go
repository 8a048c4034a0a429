package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/cloud"
	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/report"
	"github.com/integrityos/pipeline-hub/internal/repository"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

type ReportService struct {
	repos       *repository.Repos
	pipelines   *PipelineService
	readings    *ReadingService
	predictions *PredictionService
	thresholds  integrity.Thresholds
	store       ReportStore
	trigger     ReportTrigger
	function    string
	now         func() time.Time
}

type RenderedReport struct {
	FileName    string
	ContentType string
	Body        []byte
}

type PublishedReport struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (s *ReportService) Build(ctx context.Context, pipelineID string, date time.Time) (report.Document, error) {
	if date.IsZero() {
		date = s.now()
	}
	p, err := s.pipelines.Record(ctx, pipelineID)
	if err != nil {
		return report.Document{}, err
	}
	r, err := s.readings.Latest(ctx, p.ID)
	if err != nil {
		return report.Document{}, err
	}
	pred, err := s.predictions.Predict(ctx, integrity.InputFromPipeline(p.PipelineSpec, r))
	if err != nil {
		return report.Document{}, err
	}

	data := report.Data{
		Date:       date,
		Pipeline:   p,
		Reading:    r,
		Status:     s.thresholds.Status(r),
		Prediction: pred,
	}
	if ytf, ok := integrity.YearsToFailure(p.PipelineSpec, r.ThicknessLoss); ok {
		data.YearsToFailure = &ytf
	}
	if p.DeviceID != "" {
		d, err := s.repos.GetDevice(ctx, p.DeviceID)
		switch {
		case err == nil:
			data.DeviceStatus = d.Status
		case !errors.Is(err, domain.ErrNotFound):
			return report.Document{}, err
		}
	}
	return report.Build(data), nil
}

func (s *ReportService) Render(ctx context.Context, pipelineID string, date time.Time, f report.Format) (RenderedReport, error) {
	doc, err := s.Build(ctx, pipelineID, date)
	if err != nil {
		return RenderedReport{}, err
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, doc, f); err != nil {
		return RenderedReport{}, fmt.Errorf("render report: %w", err)
	}
	return RenderedReport{
		FileName:    report.FileName(doc.Generated, f),
		ContentType: f.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}

// Publish uploads a rendered report and returns its download link.
func (s *ReportService) Publish(ctx context.Context, pipelineID string, date time.Time, f report.Format) (PublishedReport, error) {
	if s.store == nil {
		return PublishedReport{}, domain.ErrCloudDisabled
	}
	rr, err := s.Render(ctx, pipelineID, date, f)
	if err != nil {
		return PublishedReport{}, err
	}
	key := path.Join("reports", simulate.Normalize(pipelineID), rr.FileName)
	url, err := s.store.UploadReport(ctx, key, rr.Body, rr.ContentType)
	if err != nil {
		return PublishedReport{}, err
	}
	log.Info().Str("key", key).Msg("report published")
	return PublishedReport{Key: key, URL: url}, nil
}

func reportPrefix(pipelineID string) string {
	if id := simulate.Normalize(pipelineID); id != "" {
		return "reports/" + id + "/"
	}
	return "reports/"
}

// List returns the keys of published reports, for one pipeline or all.
func (s *ReportService) List(ctx context.Context, pipelineID string) ([]string, error) {
	if s.store == nil {
		return nil, domain.ErrCloudDisabled
	}
	keys, err := s.store.ListReports(ctx, reportPrefix(pipelineID))
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// Fetch downloads a published report by pipeline and file name.
func (s *ReportService) Fetch(ctx context.Context, pipelineID, fileName string) (RenderedReport, error) {
	if s.store == nil {
		return RenderedReport{}, domain.ErrCloudDisabled
	}
	id := simulate.Normalize(pipelineID)
	if id == "" || fileName == "" || path.Base(fileName) != fileName || strings.HasPrefix(fileName, ".") || path.Ext(fileName) == "" {
		return RenderedReport{}, fmt.Errorf("%w: bad report name %q", domain.ErrInvalidInput, fileName)
	}
	f, err := report.ParseFormat(strings.TrimPrefix(path.Ext(fileName), "."))
	if err != nil {
		return RenderedReport{}, err
	}
	body, err := s.store.DownloadFile(ctx, reportPrefix(id)+fileName)
	if err != nil {
		return RenderedReport{}, err
	}
	return RenderedReport{FileName: fileName, ContentType: f.ContentType(), Body: body}, nil
}

// Schedule asks the daily report function to build the report from archived readings.
func (s *ReportService) Schedule(ctx context.Context, pipelineID string, date time.Time) error {
	if s.trigger == nil {
		return domain.ErrCloudDisabled
	}
	if date.IsZero() {
		date = s.now()
	}
	return s.trigger.TriggerDailyReport(ctx, s.function, cloud.DailyReportEvent{
		PipelineID: simulate.Normalize(pipelineID),
		Date:       date.Format("2006-01-02"),
	})
}

// SummaryText renders the executive summary export.
func (s *ReportService) SummaryText(sum domain.Summary) (RenderedReport, error) {
	var buf bytes.Buffer
	if err := report.WriteSummary(&buf, sum); err != nil {
		return RenderedReport{}, err
	}
	return RenderedReport{
		FileName:    report.SummaryFileName(sum.GeneratedAt),
		ContentType: report.FormatText.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}
