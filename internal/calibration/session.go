package calibration

import (
	"time"
)

// Result is a finished calculation, ready to present and hand to persistence.
type Result struct {
	Rows      []ComputedRow
	Aggregate AggregateResult
	Record    Record
	Document  Document
	Excluded  int
}

// ComputeAndPrepare evaluates raw rows, aggregates the survivors and packages the record
// to persist. It returns ErrNoValidRows when every row was excluded; nothing should be
// written in that case.
func ComputeAndPrepare(raw []RawRow, f Formula, now time.Time) (Result, error) {
	s := f.Schema()
	rows := Evaluate(f, raw)
	if len(rows) == 0 {
		return Result{Excluded: len(raw)}, ErrNoValidRows
	}

	agg := Aggregate(rows, s)
	rec := Record{
		Experiment:   s.Experiment,
		CreatedAt:    now.UTC(),
		RawRows:      cloneRawRows(raw),
		ComputedRows: rows,
		AverageRatio: agg.AverageRatio,
	}
	return Result{
		Rows:      rows,
		Aggregate: agg,
		Record:    rec,
		Document:  NewDocument(rec, s),
		Excluded:  len(raw) - len(rows),
	}, nil
}

// NewDocument lays a record out the way earlier clients wrote it, including the duplicate
// alias fields they still read.
func NewDocument(rec Record, s Schema) Document {
	inputs := make([]any, 0, len(rec.RawRows))
	for _, r := range rec.RawRows {
		m := make(map[string]any, len(r.Fields)+1)
		for k, v := range r.Fields {
			m[k] = v
		}
		m["id"] = r.ID
		inputs = append(inputs, m)
	}

	computed := make([]any, 0, len(rec.ComputedRows))
	for _, row := range rec.ComputedRows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		computed = append(computed, m)
	}

	doc := Document{
		"createdAt":    rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		InputRowsField: inputs,
	}
	for _, f := range s.RowFields {
		doc[f] = computed
	}
	for _, f := range s.AverageFields {
		if rec.AverageRatio != nil {
			doc[f] = *rec.AverageRatio
		} else {
			doc[f] = nil
		}
	}
	return doc
}

// Session is one calibration form: the rows being edited for a single experiment.
type Session struct {
	formula Formula
	rows    *RowSet
}

// NewSession starts a form with a single empty row.
func NewSession(f Formula) *Session {
	s := &Session{
		formula: f,
		rows:    NewRowSet(f.Schema().Inputs),
	}
	s.rows.Add()
	return s
}

func (s *Session) Formula() Formula { return s.formula }

func (s *Session) Rows() *RowSet { return s.rows }

// Calculate runs ComputeAndPrepare over the current form rows.
func (s *Session) Calculate(now time.Time) (Result, error) {
	return ComputeAndPrepare(s.rows.Rows(), s.formula, now)
}

// Prefill replaces the form rows with a previous run's entered rows, renumbered from 1.
func (s *Session) Prefill(rec Record) {
	if len(rec.RawRows) == 0 {
		return
	}
	s.rows.Reset(rec.RawRows)
}

func cloneRawRows(rows []RawRow) []RawRow {
	out := make([]RawRow, len(rows))
	for i, r := range rows {
		out[i] = r.clone()
	}
	return out
}

func (r RawRow) clone() RawRow {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return RawRow{ID: r.ID, Fields: fields}
}
