package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/repository"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

type PipelineService struct {
	repos      *repository.Repos
	readings   *ReadingService
	thresholds integrity.Thresholds
	gen        *simulate.Generator
	now        func() time.Time
}

// PipelineInput is the body of a create or update request.
type PipelineInput struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	domain.PipelineSpec
}

func (in PipelineInput) validate() error {
	s := in.PipelineSpec
	switch {
	case s.PipeSize < 0:
		return fmt.Errorf("%w: pipe size must not be negative", domain.ErrInvalidInput)
	case s.InitialThickness <= 0:
		return fmt.Errorf("%w: initial thickness must be positive", domain.ErrInvalidInput)
	case s.MinThickness < 0 || s.MinThickness > s.InitialThickness:
		return fmt.Errorf("%w: minimum thickness must be between 0 and the initial thickness", domain.ErrInvalidInput)
	case s.CorrosionImpact < 0 || s.CorrosionImpact > 100:
		return fmt.Errorf("%w: corrosion impact must be a percentage", domain.ErrInvalidInput)
	case s.MaterialLoss < 0 || s.MaterialLoss > 100:
		return fmt.Errorf("%w: material loss must be a percentage", domain.ErrInvalidInput)
	case s.TimeYears < 0:
		return fmt.Errorf("%w: service time must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// DefaultSpec describes the seeded pipelines.
var DefaultSpec = domain.PipelineSpec{
	PipeSize:         24,
	InitialThickness: 12.7,
	MinThickness:     8.0,
	Material:         "Carbon Steel",
	Grade:            "API 5L X65",
	CorrosionImpact:  30,
	MaterialLoss:     20,
	TimeYears:        10,
	Condition:        "Good",
}

var seedDevices = map[string]string{"A": "ESP32-01", "B": "ESP32-03", "C": "ESP32-06"}

func (s *PipelineService) Seed(ctx context.Context) error {
	n, err := s.repos.CountPipelines(ctx)
	if err != nil || n > 0 {
		return err
	}
	now := s.now()
	for _, id := range s.gen.Pipelines() {
		p := &domain.Pipeline{ID: id, DeviceID: seedDevices[id], CreatedAt: now, UpdatedAt: now, PipelineSpec: DefaultSpec}
		if err := s.repos.InsertPipeline(ctx, p); err != nil {
			return fmt.Errorf("seed pipeline %s: %w", id, err)
		}
	}
	return nil
}

func (s *PipelineService) get(ctx context.Context, id string) (domain.Pipeline, error) {
	id = simulate.Normalize(id)
	p, err := s.repos.GetPipeline(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return p, fmt.Errorf("%w: %q", domain.ErrUnknownPipeline, id)
	}
	return p, err
}

func (s *PipelineService) view(ctx context.Context, p domain.Pipeline) (domain.PipelineView, error) {
	v := domain.PipelineView{ID: p.ID, DeviceID: p.DeviceID, Status: domain.StatusNormal}
	r, err := s.readings.Latest(ctx, p.ID)
	if errors.Is(err, domain.ErrUnknownPipeline) {
		// registered but never reported
		return v, nil
	}
	if err != nil {
		return v, err
	}
	v.Temperature, v.Pressure, v.ThicknessLoss = r.Temperature, r.Pressure, r.ThicknessLoss
	v.Status = s.thresholds.Status(r)
	v.ReadingAt = r.Timestamp
	if ytf, ok := integrity.YearsToFailure(p.PipelineSpec, r.ThicknessLoss); ok {
		v.YearsToFailure = &ytf
	}
	return v, nil
}

func (s *PipelineService) List(ctx context.Context) ([]domain.PipelineView, error) {
	records, err := s.repos.ListPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	out := make([]domain.PipelineView, 0, len(records))
	for _, p := range records {
		v, err := s.view(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *PipelineService) Record(ctx context.Context, id string) (domain.Pipeline, error) {
	return s.get(ctx, id)
}

func (s *PipelineService) Get(ctx context.Context, id string) (domain.PipelineDetails, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return domain.PipelineDetails{}, err
	}
	v, err := s.view(ctx, p)
	if err != nil {
		return domain.PipelineDetails{}, err
	}
	return domain.PipelineDetails{PipelineView: v, PipelineSpec: p.PipelineSpec}, nil
}

func (s *PipelineService) Create(ctx context.Context, in PipelineInput) (domain.Pipeline, error) {
	if err := in.validate(); err != nil {
		return domain.Pipeline{}, err
	}
	id := simulate.Normalize(in.ID)
	if id == "" {
		id = "PL-" + strings.ToUpper(uuid.NewString()[:8])
	}
	now := s.now()
	p := domain.Pipeline{
		ID:           id,
		DeviceID:     normalizeDeviceID(in.DeviceID),
		CreatedAt:    now,
		UpdatedAt:    now,
		PipelineSpec: in.PipelineSpec,
	}
	if err := s.repos.InsertPipeline(ctx, &p); err != nil {
		return domain.Pipeline{}, err
	}
	return p, nil
}

func (s *PipelineService) Update(ctx context.Context, id string, in PipelineInput) (domain.Pipeline, error) {
	if err := in.validate(); err != nil {
		return domain.Pipeline{}, err
	}
	p, err := s.get(ctx, id)
	if err != nil {
		return domain.Pipeline{}, err
	}
	p.DeviceID = normalizeDeviceID(in.DeviceID)
	p.PipelineSpec = in.PipelineSpec
	p.UpdatedAt = s.now()
	if err := s.repos.UpdatePipeline(ctx, &p); err != nil {
		return domain.Pipeline{}, err
	}
	return p, nil
}
