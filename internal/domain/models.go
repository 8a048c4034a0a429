package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrUnknownPipeline    = errors.New("invalid pipeline ID")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCloudDisabled      = errors.New("cloud services not enabled")
)

type Role string

const (
	RoleGuest  Role = "guest"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// CanManage reports whether the role may change pipelines, devices and alerts.
func (r Role) CanManage() bool { return r == RoleExpert || r == RoleAdmin }

type User struct {
	Username string `db:"username" json:"username"`
	Role     Role   `db:"role" json:"role"`
}

type Session struct {
	Token     string    `db:"token" json:"token"`
	Username  string    `db:"username" json:"-"`
	Role      Role      `db:"role" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

func (s Session) User() User { return User{Username: s.Username, Role: s.Role} }

type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

type SensorReading struct {
	ID            int64     `db:"id" json:"-"`
	PipelineID    string    `db:"pipeline_id" json:"pipeline_id"`
	DeviceID      string    `db:"device_id" json:"device_id,omitempty"`
	Temperature   float64   `db:"temperature" json:"temperature"`
	Pressure      float64   `db:"pressure" json:"pressure"`
	ThicknessLoss float64   `db:"thickness_loss_mm" json:"thickness_loss_mm"`
	Timestamp     time.Time `db:"recorded_at" json:"timestamp"`
}

type HistoryPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature"`
	Pressure      float64   `json:"pressure"`
	ThicknessLoss float64   `json:"thickness_loss_mm"`
}

type History struct {
	PipelineID string         `json:"pipeline_id"`
	Data       []HistoryPoint `json:"data"`
}

// PipelineSpec holds the engineering parameters entered for a pipeline.
type PipelineSpec struct {
	PipeSize         float64 `db:"pipe_size" json:"pipe_size"`
	InitialThickness float64 `db:"initial_thickness" json:"initial_thickness"`
	MinThickness     float64 `db:"min_thickness" json:"min_thickness"`
	Material         string  `db:"material" json:"material"`
	Grade            string  `db:"grade" json:"grade"`
	CorrosionImpact  float64 `db:"corrosion_impact" json:"corrosion_impact"`
	MaterialLoss     float64 `db:"material_loss" json:"material_loss"`
	TimeYears        float64 `db:"time_years" json:"time_years"`
	Condition        string  `db:"condition" json:"condition"`
}

type Pipeline struct {
	ID        string    `db:"id" json:"id"`
	DeviceID  string    `db:"device_id" json:"device_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	PipelineSpec
}

type PipelineView struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"deviceId"`
	Temperature    float64   `json:"temperature"`
	Pressure       float64   `json:"pressure"`
	ThicknessLoss  float64   `json:"thicknessLoss"`
	YearsToFailure *float64  `json:"yearsToFailure,omitempty"`
	Status         Status    `json:"status"`
	ReadingAt      time.Time `json:"readingAt"`
}

type PipelineDetails struct {
	PipelineView
	PipelineSpec
}

type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
	DeviceWarning DeviceStatus = "warning"
)

type Device struct {
	ID             string       `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	PipelineID     string       `db:"pipeline_id" json:"pipelineId,omitempty"`
	Status         DeviceStatus `db:"status" json:"status"`
	Firmware       string       `db:"firmware" json:"firmware"`
	SignalStrength int          `db:"signal_strength" json:"signalStrength"`
	LastSeen       time.Time    `db:"last_seen" json:"lastSeen"`
}

type DeviceStats struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
	Warning int `json:"warning"`
}

type Alert struct {
	ID             string     `db:"id" json:"alertId" dynamodbav:"alertId"`
	PipelineID     string     `db:"pipeline_id" json:"pipelineId" dynamodbav:"pipelineId"`
	DeviceID       string     `db:"device_id" json:"deviceId,omitempty" dynamodbav:"deviceId"`
	Severity       Status     `db:"severity" json:"severity" dynamodbav:"severity"`
	Message        string     `db:"message" json:"message" dynamodbav:"message"`
	Temperature    float64    `db:"temperature" json:"temperature" dynamodbav:"temperature"`
	Pressure       float64    `db:"pressure" json:"pressure" dynamodbav:"pressure"`
	ThicknessLoss  float64    `db:"thickness_loss_mm" json:"thicknessLoss" dynamodbav:"thicknessLoss"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt" dynamodbav:"-"`
	Acknowledged   bool       `db:"acknowledged" json:"acknowledged" dynamodbav:"acknowledged"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledgedAt,omitempty" dynamodbav:"-"`
}

// PipelineStatus is a latest reading with its derived status.
type PipelineStatus struct {
	SensorReading
	Status Status `json:"status"`
}

type Summary struct {
	GeneratedAt          time.Time        `json:"generated_at"`
	Pipelines            []PipelineStatus `json:"pipelines"`
	AverageTemperature   float64          `json:"average_temperature"`
	AveragePressure      float64          `json:"average_pressure"`
	AverageThicknessLoss float64          `json:"average_thickness_loss_mm"`
	StatusCounts         map[Status]int   `json:"status_counts"`
	Recommendations      []string         `json:"recommendations"`
}
