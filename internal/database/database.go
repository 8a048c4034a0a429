package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/integrityos/pipeline-hub/internal/config"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

func Connect() (*sqlx.DB, error) {
	return Open(config.DBDriver(), config.DBDSN())
}

// Open connects with the given driver and creates the schema.
func Open(driver, dsn string) (*sqlx.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection so that :memory: databases are shared
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates missing tables for the connection's dialect.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	r := strings.NewReplacer("{{serial}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ")
	if db.DriverName() == DriverSQLite {
		r = strings.NewReplacer("{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "TIMESTAMP")
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pipelines (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL DEFAULT '',
		pipe_size DOUBLE PRECISION NOT NULL DEFAULT 0,
		initial_thickness DOUBLE PRECISION NOT NULL DEFAULT 0,
		min_thickness DOUBLE PRECISION NOT NULL DEFAULT 0,
		material TEXT NOT NULL DEFAULT '',
		grade TEXT NOT NULL DEFAULT '',
		corrosion_impact DOUBLE PRECISION NOT NULL DEFAULT 0,
		material_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
		time_years DOUBLE PRECISION NOT NULL DEFAULT 0,
		condition TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sensor_data (
		id {{serial}},
		pipeline_id TEXT NOT NULL,
		device_id TEXT NOT NULL DEFAULT '',
		temperature DOUBLE PRECISION NOT NULL,
		pressure DOUBLE PRECISION NOT NULL,
		thickness_loss_mm DOUBLE PRECISION NOT NULL,
		recorded_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sensor_data_pipeline_time ON sensor_data (pipeline_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		pipeline_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		firmware TEXT NOT NULL DEFAULT '',
		signal_strength INTEGER NOT NULL DEFAULT 0,
		last_seen {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		expires_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		pipeline_id TEXT NOT NULL,
		device_id TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		temperature DOUBLE PRECISION NOT NULL DEFAULT 0,
		pressure DOUBLE PRECISION NOT NULL DEFAULT 0,
		thickness_loss_mm DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
		acknowledged_at {{ts}}
	)`,
}
