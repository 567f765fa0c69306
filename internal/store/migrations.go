package store

import (
	"database/sql"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS calibration_records (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    experiment TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    document_compressed BLOB NOT NULL,
    document_hash TEXT NOT NULL,
    schema_version INTEGER NOT NULL DEFAULT 1,
    inserted_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_user_experiment
    ON calibration_records(user_id, experiment, created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "Add shortcuts table for recently opened experiments",
		SQL: `
CREATE TABLE IF NOT EXISTS shortcuts (
    user_id TEXT NOT NULL,
    experiment TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    PRIMARY KEY (user_id, experiment)
);
`,
	},
	{
		Version:     3,
		Description: "Add row_count and average_ratio summary columns to calibration_records",
		SQL: `
ALTER TABLE calibration_records ADD COLUMN row_count INTEGER;
ALTER TABLE calibration_records ADD COLUMN average_ratio REAL;
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return pkgerrors.Wrap(err, "ensure migrations table")
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return pkgerrors.Wrap(err, "get applied migrations")
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		logrus.Infof("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return pkgerrors.Wrapf(err, "begin tx for migration %d", m.Version)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return pkgerrors.Wrapf(err, "execute migration %d", m.Version)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return pkgerrors.Wrapf(err, "record migration %d", m.Version)
		}

		if err := tx.Commit(); err != nil {
			return pkgerrors.Wrapf(err, "commit migration %d", m.Version)
		}

		logrus.Debugf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
