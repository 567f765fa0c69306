package models

import (
	"database/sql"
	"time"
)

// StoredRecord is one persisted calibration run. Document is the JSON body in whatever shape
// the writing client used; SchemaVersion says which writer produced it.
type StoredRecord struct {
	ID            string
	UserID        string
	Experiment    string
	CreatedAt     time.Time
	Document      []byte
	DocumentHash  string
	SchemaVersion int
	RowCount      sql.NullInt64
	AverageRatio  sql.NullFloat64
	InsertedAt    time.Time
}

// RecordSummary is the listing view of a stored run, without its document.
type RecordSummary struct {
	ID            string
	Experiment    string
	CreatedAt     time.Time
	SchemaVersion int
	RowCount      sql.NullInt64
	AverageRatio  sql.NullFloat64
	SizeBytes     int64
}

// Shortcut records that a user opened an experiment, for the home screen.
type Shortcut struct {
	UserID     string
	Experiment string
	CreatedAt  time.Time
}
