// Package sqlstore provides SQL persistence for runs, AI jobs and projects on
// PostgreSQL or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Persistence implements persistence.Persistence on a SQL database.
type Persistence struct {
	db       *sql.DB
	dialect  sqlbase.Dialect
	logger   *slog.Logger
	runs     *RunRepository
	jobs     *JobRepository
	projects *ProjectRepository
}

// NewPersistence opens dsn with the driver of dialect and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, dialect sqlbase.Dialect, dsn string) (*Persistence, error) {
	database, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	if dialect == sqlbase.SQLite {
		// every connection to an in-memory database is a separate database
		database.SetMaxOpenConns(1)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "sqlstore", "dialect", dialect.String())

	migrationManager := sqlbase.NewMigrationManager(logger, database, dialect, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:       database,
		dialect:  dialect,
		logger:   logger,
		runs:     &RunRepository{db: database, dialect: dialect},
		jobs:     &JobRepository{db: database, dialect: dialect},
		projects: &ProjectRepository{db: database, dialect: dialect},
	}, nil
}

func (p *Persistence) RunRepository() persistence.RunRepository {
	return p.runs
}

func (p *Persistence) JobRepository() persistence.JobRepository {
	return p.jobs
}

func (p *Persistence) ProjectRepository() persistence.ProjectRepository {
	return p.projects
}

// Jobs returns the concrete job repository, which also supports retention.
func (p *Persistence) Jobs() *JobRepository {
	return p.jobs
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
