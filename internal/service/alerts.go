package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

// AlertService raises an alert when a pipeline's status worsens or changes
// between warning and critical. Readings that keep the status do not.
type AlertService struct {
	store      AlertStore
	notifier   Notifier
	thresholds integrity.Thresholds
	now        func() time.Time

	mu   sync.Mutex
	last map[string]domain.Status
}

func NewAlertService(store AlertStore, notifier Notifier, th integrity.Thresholds, now func() time.Time) *AlertService {
	return &AlertService{
		store:      store,
		notifier:   notifier,
		thresholds: th,
		now:        now,
		last:       make(map[string]domain.Status),
	}
}

func (s *AlertService) transition(id string, status domain.Status) domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.last[id]
	if !ok {
		prev = domain.StatusNormal
	}
	s.last[id] = status
	return prev
}

// Evaluate compares r with the last status this process saw for the pipeline.
func (s *AlertService) Evaluate(ctx context.Context, r domain.SensorReading) (*domain.Alert, error) {
	prev := s.transition(r.PipelineID, s.thresholds.Status(r))
	return s.Raise(ctx, r, prev)
}

// Raise stores an alert when r is not normal and its status differs from
// prev. Critical alerts are also sent to the notifier. It returns nil when
// nothing was raised.
func (s *AlertService) Raise(ctx context.Context, r domain.SensorReading, prev domain.Status) (*domain.Alert, error) {
	status := s.thresholds.Status(r)
	if status == prev || status == domain.StatusNormal {
		return nil, nil
	}

	a := domain.Alert{
		ID:            uuid.NewString(),
		PipelineID:    r.PipelineID,
		DeviceID:      r.DeviceID,
		Severity:      status,
		Message:       fmt.Sprintf("Pipeline %s changed from %s to %s: %s", r.PipelineID, prev, status, strings.Join(s.thresholds.Violations(r), ", ")),
		Temperature:   r.Temperature,
		Pressure:      r.Pressure,
		ThicknessLoss: r.ThicknessLoss,
		CreatedAt:     s.now(),
	}
	if err := s.store.PutAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("store alert: %w", err)
	}
	log.Warn().Str("pipeline", a.PipelineID).Str("severity", string(a.Severity)).Msg(a.Message)

	if status == domain.StatusCritical && s.notifier != nil {
		if err := s.notifier.NotifyAlert(ctx, a); err != nil {
			log.Error().Err(err).Str("alert", a.ID).Msg("alert notification failed")
		}
	}
	return &a, nil
}

func parseSeverity(s string) (domain.Status, error) {
	switch v := domain.Status(strings.ToLower(strings.TrimSpace(s))); v {
	case "", "all":
		return "", nil
	case domain.StatusNormal, domain.StatusWarning, domain.StatusCritical:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown severity %q", domain.ErrInvalidInput, s)
}

func (s *AlertService) List(ctx context.Context, severity string) ([]domain.Alert, error) {
	sev, err := parseSeverity(severity)
	if err != nil {
		return nil, err
	}
	alerts, err := s.store.ListAlerts(ctx, sev)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return alerts, nil
}

func (s *AlertService) Acknowledge(ctx context.Context, id string) error {
	return s.store.AcknowledgeAlert(ctx, id, s.now())
}
