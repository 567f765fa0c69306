// Package calibration turns bench trials into derived flow quantities, aggregates them into a
// correction factor or discharge coefficient with a best-fit line, and reconciles stored
// records of any schema vintage back into the current row shape.
//
// Everything here is synchronous and side-effect free. Persistence, identity and rendering
// belong to the caller.
package calibration

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

var (
	// ErrNoValidRows is returned when every input row was excluded. Nothing should be persisted.
	ErrNoValidRows = errors.New("no valid rows")

	// ErrNoRecordFound signals the expected empty state: no stored run exists.
	ErrNoRecordFound = errors.New("no record found")

	// ErrUnknownExperiment is returned by Lookup for an unrecognised experiment name.
	ErrUnknownExperiment = errors.New("unknown experiment")
)

// Experiment identifies a calibration experiment type.
type Experiment string

const (
	ExperimentRotameter    Experiment = "rotameter"
	ExperimentVenturimeter Experiment = "venturimeter"
)

// FitMethod selects how the best-fit line is computed.
type FitMethod string

const (
	FitPairwise     FitMethod = "pairwise"
	FitLeastSquares FitMethod = "least_squares"
)

// RawRow is one trial exactly as entered. Values are kept as text.
type RawRow struct {
	ID     string
	Fields map[string]string
}

// Get returns the entered text for a field, or "" when it is unset.
func (r RawRow) Get(field string) string {
	return r.Fields[field]
}

// MarshalJSON writes the flat stored shape: {"id":"1","qrot":"12","time":"30"}.
func (r RawRow) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["id"] = r.ID
	return json.Marshal(m)
}

// UnmarshalJSON accepts the flat stored shape. Non-string values are stringified so rows
// written by older clients with numeric inputs still load.
func (r *RawRow) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	r.Fields = make(map[string]string, len(m))
	for k, raw := range m {
		s := rawText(raw)
		if k == "id" {
			r.ID = s
			continue
		}
		r.Fields[k] = s
	}
	return nil
}

func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// ComputedRow holds a trial's numeric inputs and derived quantities keyed by their stored
// field names. A missing key is a null value.
type ComputedRow map[string]float64

// Value returns the field's value if present and finite.
func (r ComputedRow) Value(field string) (float64, bool) {
	v, ok := r[field]
	if !ok || !finite(v) {
		return 0, false
	}
	return v, true
}

// Clone returns an independent copy.
func (r ComputedRow) Clone() ComputedRow {
	out := make(ComputedRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// BestFit is the linear relationship between the experiment's fit axes.
// Intercept is set only by a successful least-squares fit; pairwise fits have none.
// OK is false when a least-squares fit was degenerate.
type BestFit struct {
	Method    FitMethod `json:"method"`
	Slope     float64   `json:"slope"`
	Intercept *float64  `json:"intercept,omitempty"`
	OK        bool      `json:"ok"`
}

// AggregateResult summarises a set of computed rows. It is always re-derivable from them.
type AggregateResult struct {
	AverageRatio *float64 `json:"averageRatio"`
	BestFit      BestFit  `json:"bestFit"`
}

// Record is the unit of persistence: one calculation run.
type Record struct {
	ID           string
	Experiment   Experiment
	CreatedAt    time.Time
	RawRows      []RawRow
	ComputedRows []ComputedRow
	AverageRatio *float64

	// Source names the strategy that supplied ComputedRows when the record was normalized
	// from a stored document. Empty for freshly computed records.
	Source string
}

// Point is one (x, y) pair fed to the fitting routines.
type Point struct {
	X, Y float64
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ptr(v float64) *float64 {
	return &v
}
