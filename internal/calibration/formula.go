package calibration

import (
	"fmt"
	"strconv"
	"strings"
)

// InputRowsField is the document field holding the rows as entered, for every experiment.
const InputRowsField = "inputRows"

// Schema describes an experiment's row shape and how its records are laid out in storage.
type Schema struct {
	Experiment Experiment
	Title      string

	// Collection is the per-user document collection name used by earlier clients.
	Collection string

	// Inputs are the raw fields a user enters, in entry order.
	Inputs []string
	// Derived are the computed fields in derivation order. Ratio is one of them.
	Derived []string
	Ratio   string

	FitX, FitY string
	Fit        FitMethod

	// RowFields receive the computed rows when a record is written, and are read back in
	// this order. The first is canonical; the rest are aliases older clients still read.
	RowFields []string
	// AverageFields receive the average ratio, with the same ordering rule.
	AverageFields []string

	Columns []Column
}

// Fields returns inputs followed by derived fields.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s.Inputs)+len(s.Derived))
	out = append(out, s.Inputs...)
	return append(out, s.Derived...)
}

// Complete reports whether every derived field other than the ratio is present and finite.
func (s Schema) Complete(row ComputedRow) bool {
	for _, f := range s.Derived {
		if f == s.Ratio {
			continue
		}
		if _, ok := row.Value(f); !ok {
			return false
		}
	}
	return true
}

// Formula maps a row of measurements to derived physical quantities for one experiment.
type Formula interface {
	Schema() Schema

	// Complete fills every missing or non-finite derived field it can from the fields that
	// are present and finite. Present finite values are never overwritten.
	Complete(row ComputedRow) ComputedRow
}

// Derive evaluates one raw row. It reports false when the row is excluded: an input is not a
// finite number, or a derived quantity other than the ratio cannot be computed.
func Derive(f Formula, raw RawRow) (ComputedRow, bool) {
	s := f.Schema()
	row := make(ComputedRow, len(s.Inputs)+len(s.Derived))
	for _, field := range s.Inputs {
		v, ok := ParseNumber(raw.Get(field))
		if !ok {
			return nil, false
		}
		row[field] = v
	}
	row = f.Complete(row)
	if !s.Complete(row) {
		return nil, false
	}
	return row, true
}

// Evaluate derives every raw row in order, silently dropping excluded ones.
func Evaluate(f Formula, raw []RawRow) []ComputedRow {
	out := make([]ComputedRow, 0, len(raw))
	for _, r := range raw {
		if row, ok := Derive(f, r); ok {
			out = append(out, row)
		}
	}
	return out
}

// ParseNumber parses entered text as a finite decimal number. Blank text is not a number.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

// fill sets field from derive unless the row already holds a finite value for it.
// A stored non-finite value is dropped first.
func (r ComputedRow) fill(field string, derive func() (float64, bool)) {
	if _, ok := r.Value(field); ok {
		return
	}
	delete(r, field)
	if v, ok := derive(); ok && finite(v) {
		r[field] = v
	}
}

var formulas = []Formula{
	NewRotameter(),
	NewVenturimeter(),
}

// Experiments returns the formulas for every supported experiment, in catalog order.
func Experiments() []Formula {
	out := make([]Formula, len(formulas))
	copy(out, formulas)
	return out
}

// Lookup resolves an experiment by name or legacy collection name, case-insensitively.
func Lookup(name string) (Formula, error) {
	name = strings.TrimSpace(name)
	for _, f := range formulas {
		s := f.Schema()
		if strings.EqualFold(name, string(s.Experiment)) || strings.EqualFold(name, s.Collection) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownExperiment, name)
}
