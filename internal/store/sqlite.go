package store

import (
	"context"
	"database/sql"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/lox/flowcal/internal/models"
)

// Schema versions stored alongside each document.
const (
	SchemaVersionLegacy  = 1
	SchemaVersionCurrent = 2
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// WriteOption adjusts how a record is written.
type WriteOption func(*writeOptions)

type writeOptions struct {
	schemaVersion int
	rowCount      sql.NullInt64
	averageRatio  sql.NullFloat64
}

// WithSchemaVersion overrides the schema version stored with the document.
func WithSchemaVersion(v int) WriteOption {
	return func(o *writeOptions) { o.schemaVersion = v }
}

// WithSummary stores the row count and average ratio next to the document so listings
// don't need to decompress it.
func WithSummary(rowCount int, averageRatio *float64) WriteOption {
	return func(o *writeOptions) {
		o.rowCount = sql.NullInt64{Int64: int64(rowCount), Valid: true}
		if averageRatio != nil {
			o.averageRatio = sql.NullFloat64{Float64: *averageRatio, Valid: true}
		}
	}
}

// WriteRecord inserts a new calibration record. Records are never updated in place.
func (s *Store) WriteRecord(ctx context.Context, userID, experiment, id string, createdAt time.Time, doc []byte, opts ...WriteOption) error {
	o := writeOptions{schemaVersion: SchemaVersionCurrent}
	for _, opt := range opts {
		opt(&o)
	}

	compressed, hash, err := compressDocument(doc)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calibration_records (id, user_id, experiment, created_at, document_compressed, document_hash, schema_version, row_count, average_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, userID, experiment, createdAt.UTC(), compressed, hash, o.schemaVersion, o.rowCount, o.averageRatio)
	if err != nil {
		return pkgerrors.Wrapf(err, "insert record %s", id)
	}
	return nil
}

// ReadMostRecent returns the newest document for the user and experiment, or nil if there is none.
func (s *Store) ReadMostRecent(ctx context.Context, userID, experiment string) ([]byte, error) {
	rec, err := s.GetMostRecentRecord(ctx, userID, experiment)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Document, nil
}

// GetMostRecentRecord is ReadMostRecent with the stored metadata attached.
func (s *Store) GetMostRecentRecord(ctx context.Context, userID, experiment string) (*models.StoredRecord, error) {
	var rec models.StoredRecord
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, experiment, created_at, document_compressed, document_hash, schema_version, row_count, average_ratio, inserted_at
		FROM calibration_records
		WHERE user_id = ? AND experiment = ?
		ORDER BY created_at DESC, inserted_at DESC
		LIMIT 1
	`, userID, experiment).Scan(&rec.ID, &rec.UserID, &rec.Experiment, &rec.CreatedAt, &compressed,
		&rec.DocumentHash, &rec.SchemaVersion, &rec.RowCount, &rec.AverageRatio, &rec.InsertedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query most recent record")
	}

	rec.Document, err = decompressDocument(compressed)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "record %s", rec.ID)
	}
	return &rec, nil
}

// ListRecords returns record metadata newest first. A non-positive limit returns everything.
func (s *Store) ListRecords(ctx context.Context, userID, experiment string, limit int) ([]models.RecordSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, experiment, created_at, schema_version, row_count, average_ratio, LENGTH(document_compressed)
		FROM calibration_records
		WHERE user_id = ? AND experiment = ?
		ORDER BY created_at DESC, inserted_at DESC
		LIMIT ?
	`, userID, experiment, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list records")
	}
	defer rows.Close()

	var out []models.RecordSummary
	for rows.Next() {
		var r models.RecordSummary
		if err := rows.Scan(&r.ID, &r.Experiment, &r.CreatedAt, &r.SchemaVersion, &r.RowCount, &r.AverageRatio, &r.SizeBytes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddShortcut pins an experiment to the user's home screen. Adding it twice keeps the first.
func (s *Store) AddShortcut(ctx context.Context, userID, experiment string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shortcuts (user_id, experiment, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, experiment) DO NOTHING
	`, userID, experiment, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(err, "insert shortcut")
	}
	return nil
}

func (s *Store) Shortcuts(ctx context.Context, userID string) ([]models.Shortcut, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, experiment, created_at
		FROM shortcuts
		WHERE user_id = ?
		ORDER BY created_at, experiment
	`, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query shortcuts")
	}
	defer rows.Close()

	var out []models.Shortcut
	for rows.Next() {
		var sc models.Shortcut
		if err := rows.Scan(&sc.UserID, &sc.Experiment, &sc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
