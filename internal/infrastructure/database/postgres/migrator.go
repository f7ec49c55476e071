package postgres

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nasher721/note-clarity-sub000/internal/config"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

// Migrator applies schema migrations from a file source.  It opens its own
// database/sql handle because golang-migrate drives raw connections, not the
// pgx pool.
type Migrator struct {
	m      *migrate.Migrate
	db     *sql.DB
	logger logging.Logger
}

// NewMigrator prepares a migrator reading migrations from cfg.MigrationPath.
func NewMigrator(cfg config.DatabaseConfig, log logging.Logger) (*Migrator, error) {
	db, err := sql.Open("pgx", BuildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open migration connection")
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationPath, "pgx", driver)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}

	return &Migrator{m: m, db: db, logger: log}, nil
}

// Up applies all pending migrations.  Already-current schemas are not an
// error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && err != migrate.ErrNoChange {
		version, _, _ := mg.m.Version()
		return errors.Wrapf(err, errors.ErrCodeDatabaseError,
			"failed to run migrations (current version: %d)", version)
	}

	version, dirty, err := mg.m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		mg.logger.Warn("Failed to read migration version", logging.Err(err))
		return nil
	}

	mg.logger.Info("Database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back a single migration step.
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migration")
	}
	return nil
}

// Close releases the migration connection.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return errors.Wrap(srcErr, errors.ErrCodeDatabaseError, "failed to close migration source")
	}
	if dbErr != nil {
		return errors.Wrap(dbErr, errors.ErrCodeDatabaseError, "failed to close migration database")
	}
	return nil
}
