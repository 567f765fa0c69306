package calibration

import (
	"slices"
	"strconv"
)

// RowSet holds form rows in insertion order, keyed by ids from a counter that only increases,
// so an id is never reused after a row is removed.
type RowSet struct {
	fields []string
	order  []string
	rows   map[string]RawRow
	next   int
}

// NewRowSet creates an empty set whose rows accept the given input fields.
func NewRowSet(fields []string) *RowSet {
	return &RowSet{
		fields: fields,
		rows:   make(map[string]RawRow),
		next:   1,
	}
}

// Add appends an empty row and returns its id.
func (s *RowSet) Add() string {
	id := strconv.Itoa(s.next)
	s.next++
	fields := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		fields[f] = ""
	}
	s.rows[id] = RawRow{ID: id, Fields: fields}
	s.order = append(s.order, id)
	return id
}

// Remove deletes the row with id. It reports whether the row existed.
func (s *RowSet) Remove(id string) bool {
	if _, ok := s.rows[id]; !ok {
		return false
	}
	delete(s.rows, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	return true
}

// Update sets one input field of a row. Unknown rows or fields are ignored and reported.
func (s *RowSet) Update(id, field, value string) bool {
	r, ok := s.rows[id]
	if !ok || !slices.Contains(s.fields, field) {
		return false
	}
	r.Fields[field] = value
	return true
}

// Rows returns a copy of the rows in insertion order.
func (s *RowSet) Rows() []RawRow {
	out := make([]RawRow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id].clone())
	}
	return out
}

func (s *RowSet) Len() int { return len(s.order) }

// Reset replaces all rows, renumbering them 1..n. Only known input fields are kept.
func (s *RowSet) Reset(rows []RawRow) {
	s.order = s.order[:0]
	s.rows = make(map[string]RawRow, len(rows))
	s.next = 1
	for _, r := range rows {
		id := s.Add()
		for _, f := range s.fields {
			s.rows[id].Fields[f] = r.Get(f)
		}
	}
}
