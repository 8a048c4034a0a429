package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

type Repos struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repos { return &Repos{db: db} }

func (r *Repos) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", what, id, domain.ErrNotFound)
	}
	return err
}

func mustAffect(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", what, id, domain.ErrNotFound)
	}
	return nil
}

const pipelineColumns = `id, device_id, pipe_size, initial_thickness, min_thickness, material, grade,
	corrosion_impact, material_loss, time_years, condition, created_at, updated_at`

func (r *Repos) ListPipelines(ctx context.Context) ([]domain.Pipeline, error) {
	var out []domain.Pipeline
	err := r.db.SelectContext(ctx, &out, `SELECT `+pipelineColumns+` FROM pipelines ORDER BY id`)
	return out, err
}

func (r *Repos) GetPipeline(ctx context.Context, id string) (domain.Pipeline, error) {
	var p domain.Pipeline
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+pipelineColumns+` FROM pipelines WHERE id = ?`), id)
	return p, notFound(err, "pipeline", id)
}

func (r *Repos) CountPipelines(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM pipelines`)
	return n, err
}

func (r *Repos) InsertPipeline(ctx context.Context, p *domain.Pipeline) error {
	res, err := r.db.NamedExecContext(ctx, `INSERT INTO pipelines (`+pipelineColumns+`)
		VALUES (:id, :device_id, :pipe_size, :initial_thickness, :min_thickness, :material, :grade,
			:corrosion_impact, :material_loss, :time_years, :condition, :created_at, :updated_at)
		ON CONFLICT (id) DO NOTHING`, p)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pipeline %q: %w", p.ID, domain.ErrConflict)
	}
	return nil
}

func (r *Repos) UpdatePipeline(ctx context.Context, p *domain.Pipeline) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE pipelines SET
		device_id = :device_id, pipe_size = :pipe_size, initial_thickness = :initial_thickness,
		min_thickness = :min_thickness, material = :material, grade = :grade,
		corrosion_impact = :corrosion_impact, material_loss = :material_loss,
		time_years = :time_years, condition = :condition, updated_at = :updated_at
		WHERE id = :id`, p)
	if err != nil {
		return err
	}
	return mustAffect(res, "pipeline", p.ID)
}

func (r *Repos) InsertReading(ctx context.Context, rd *domain.SensorReading) error {
	q := r.db.Rebind(`INSERT INTO sensor_data (pipeline_id, device_id, temperature, pressure, thickness_loss_mm, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	return r.db.QueryRowxContext(ctx, q,
		rd.PipelineID, rd.DeviceID, rd.Temperature, rd.Pressure, rd.ThicknessLoss, rd.Timestamp).Scan(&rd.ID)
}

func (r *Repos) LatestReading(ctx context.Context, pipelineID string) (domain.SensorReading, error) {
	var rd domain.SensorReading
	err := r.db.GetContext(ctx, &rd, r.db.Rebind(`SELECT id, pipeline_id, device_id, temperature, pressure, thickness_loss_mm, recorded_at
		FROM sensor_data WHERE pipeline_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`), pipelineID)
	return rd, notFound(err, "reading for pipeline", pipelineID)
}

const deviceColumns = `id, name, pipeline_id, status, firmware, signal_strength, last_seen`

func (r *Repos) ListDevices(ctx context.Context) ([]domain.Device, error) {
	var out []domain.Device
	err := r.db.SelectContext(ctx, &out, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	return out, err
}

func (r *Repos) GetDevice(ctx context.Context, id string) (domain.Device, error) {
	var d domain.Device
	err := r.db.GetContext(ctx, &d, r.db.Rebind(`SELECT `+deviceColumns+` FROM devices WHERE id = ?`), id)
	return d, notFound(err, "device", id)
}

func (r *Repos) CountDevices(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM devices`)
	return n, err
}

func (r *Repos) InsertDevice(ctx context.Context, d *domain.Device) error {
	res, err := r.db.NamedExecContext(ctx, `INSERT INTO devices (`+deviceColumns+`)
		VALUES (:id, :name, :pipeline_id, :status, :firmware, :signal_strength, :last_seen)
		ON CONFLICT (id) DO NOTHING`, d)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("device %q: %w", d.ID, domain.ErrConflict)
	}
	return nil
}

func (r *Repos) AssignDevice(ctx context.Context, id, pipelineID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE devices SET pipeline_id = ? WHERE id = ?`), pipelineID, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "device", id)
}

func (r *Repos) SetDeviceStatus(ctx context.Context, id string, status domain.DeviceStatus, seen time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE devices SET status = ?, last_seen = ? WHERE id = ?`), status, seen, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "device", id)
}

func (r *Repos) InsertSession(ctx context.Context, s *domain.Session) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO sessions (token, username, role, created_at, expires_at)
		VALUES (:token, :username, :role, :created_at, :expires_at)`, s)
	return err
}

func (r *Repos) GetSession(ctx context.Context, token string) (domain.Session, error) {
	var s domain.Session
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT token, username, role, created_at, expires_at FROM sessions WHERE token = ?`), token)
	return s, notFound(err, "session", "")
}

func (r *Repos) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE token = ?`), token)
	return err
}

func (r *Repos) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const alertColumns = `id, pipeline_id, device_id, severity, message, temperature, pressure, thickness_loss_mm,
	created_at, acknowledged, acknowledged_at`

func (r *Repos) PutAlert(ctx context.Context, a domain.Alert) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO alerts (`+alertColumns+`)
		VALUES (:id, :pipeline_id, :device_id, :severity, :message, :temperature, :pressure, :thickness_loss_mm,
			:created_at, :acknowledged, :acknowledged_at)`, a)
	return err
}

// ListAlerts returns alerts newest first; an empty severity matches all.
func (r *Repos) ListAlerts(ctx context.Context, severity domain.Status) ([]domain.Alert, error) {
	var out []domain.Alert
	q := `SELECT ` + alertColumns + ` FROM alerts`
	var args []any
	if severity != "" {
		q += ` WHERE severity = ?`
		args = append(args, severity)
	}
	q += ` ORDER BY created_at DESC, id`
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

func (r *Repos) AcknowledgeAlert(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE alerts SET acknowledged = ?, acknowledged_at = ? WHERE id = ?`), true, at, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "alert", id)
}
