package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/repository"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

type DeviceService struct {
	repos *repository.Repos
	gen   *simulate.Generator
	now   func() time.Time
}

type DeviceInput struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PipelineID string `json:"pipeline_id"`
	Firmware   string `json:"firmware"`
}

type DeviceList struct {
	Devices []domain.Device    `json:"devices"`
	Stats   domain.DeviceStats `json:"stats"`
}

// ConnectionTest is the outcome of a sensor unit connection test.
type ConnectionTest struct {
	DeviceID    string  `json:"deviceId"`
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	Temperature float64 `json:"temperature,omitempty"`
	Pressure    float64 `json:"pressure,omitempty"`
}

var seedUnits = []domain.Device{
	{ID: "ESP32-01", Name: "Sensor Unit A1", PipelineID: "A", Status: domain.DeviceOnline, Firmware: "v2.1.3", SignalStrength: 92},
	{ID: "ESP32-02", Name: "Sensor Unit A2", PipelineID: "A", Status: domain.DeviceOnline, Firmware: "v2.1.3", SignalStrength: 88},
	{ID: "ESP32-03", Name: "Sensor Unit B1", PipelineID: "B", Status: domain.DeviceOnline, Firmware: "v2.1.3", SignalStrength: 95},
	{ID: "ESP32-04", Name: "Sensor Unit B2", PipelineID: "B", Status: domain.DeviceWarning, Firmware: "v2.0.8", SignalStrength: 65},
	{ID: "ESP32-05", Name: "Pressure Monitor A", PipelineID: "A", Status: domain.DeviceOnline, Firmware: "v2.1.3", SignalStrength: 90},
	{ID: "ESP32-06", Name: "Backup Sensor C1", PipelineID: "C", Status: domain.DeviceOffline, Firmware: "v2.0.5", SignalStrength: 0},
}

func (s *DeviceService) Seed(ctx context.Context) error {
	n, err := s.repos.CountDevices(ctx)
	if err != nil || n > 0 {
		return err
	}
	now := s.now()
	for i, d := range seedUnits {
		d.LastSeen = now
		if d.Status == domain.DeviceOffline {
			d.LastSeen = now.Add(-time.Duration(i) * time.Hour)
		}
		if err := s.repos.InsertDevice(ctx, &d); err != nil {
			return fmt.Errorf("seed device %s: %w", d.ID, err)
		}
	}
	return nil
}

func normalizeDeviceID(id string) string { return strings.ToUpper(strings.TrimSpace(id)) }

func Stats(devices []domain.Device) domain.DeviceStats {
	st := domain.DeviceStats{Total: len(devices)}
	for _, d := range devices {
		switch d.Status {
		case domain.DeviceOnline:
			st.Online++
		case domain.DeviceOffline:
			st.Offline++
		case domain.DeviceWarning:
			st.Warning++
		}
	}
	return st
}

func (s *DeviceService) List(ctx context.Context) (DeviceList, error) {
	devices, err := s.repos.ListDevices(ctx)
	if err != nil {
		return DeviceList{}, fmt.Errorf("list devices: %w", err)
	}
	if devices == nil {
		devices = []domain.Device{}
	}
	return DeviceList{Devices: devices, Stats: Stats(devices)}, nil
}

// Create registers a unit; it stays offline until it reports.
func (s *DeviceService) Create(ctx context.Context, in DeviceInput) (domain.Device, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Device{}, fmt.Errorf("%w: device name is required", domain.ErrInvalidInput)
	}
	id := normalizeDeviceID(in.ID)
	if id == "" {
		id = "ESP32-" + strings.ToUpper(uuid.NewString()[:4])
	}
	d := domain.Device{
		ID:         id,
		Name:       name,
		PipelineID: simulate.Normalize(in.PipelineID),
		Status:     domain.DeviceOffline,
		Firmware:   strings.TrimSpace(in.Firmware),
		LastSeen:   s.now(),
	}
	if err := s.repos.InsertDevice(ctx, &d); err != nil {
		return domain.Device{}, err
	}
	return d, nil
}

func (s *DeviceService) Assign(ctx context.Context, id, pipelineID string) (domain.Device, error) {
	id = normalizeDeviceID(id)
	if err := s.repos.AssignDevice(ctx, id, simulate.Normalize(pipelineID)); err != nil {
		return domain.Device{}, err
	}
	return s.repos.GetDevice(ctx, id)
}

func (s *DeviceService) Restart(ctx context.Context, id string) (domain.Device, error) {
	id = normalizeDeviceID(id)
	if err := s.repos.SetDeviceStatus(ctx, id, domain.DeviceOnline, s.now()); err != nil {
		return domain.Device{}, err
	}
	return s.repos.GetDevice(ctx, id)
}

// TestConnection succeeds only for online units and returns live values.
func (s *DeviceService) TestConnection(ctx context.Context, id string) (ConnectionTest, error) {
	d, err := s.repos.GetDevice(ctx, normalizeDeviceID(id))
	if err != nil {
		return ConnectionTest{}, err
	}
	res := ConnectionTest{DeviceID: d.ID}
	if d.Status != domain.DeviceOnline {
		res.Message = fmt.Sprintf("%s is %s", d.Name, d.Status)
		return res, nil
	}
	res.Success = true
	res.Message = fmt.Sprintf("%s responded", d.Name)
	res.Temperature, res.Pressure = s.gen.DeviceTelemetry()
	return res, nil
}
