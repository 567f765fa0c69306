package calibration

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Document is a stored record in whatever shape it was written, decoded generically.
type Document map[string]any

// DecodeDocument decodes a stored JSON document. Numbers are kept as json.Number so no
// precision is lost before coercion. A JSON null decodes to a nil Document.
func DecodeDocument(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// rowStrategy extracts a candidate row sequence from a document.
type rowStrategy struct {
	name    string
	extract func(Document) ([]any, bool)
}

// averageStrategy extracts a stored average ratio from a document.
type averageStrategy struct {
	name    string
	extract func(Document) (float64, bool)
}

func arrayField(field string) func(Document) ([]any, bool) {
	return func(doc Document) ([]any, bool) {
		v, ok := doc[field].([]any)
		return v, ok
	}
}

func numberField(field string) func(Document) (float64, bool) {
	return func(doc Document) (float64, bool) {
		return coerceNumber(doc[field])
	}
}

// rowStrategies lists where computed rows may live, newest layout first. The raw input rows
// come last: they carry no derived fields and everything is re-derived from them.
func rowStrategies(s Schema) []rowStrategy {
	var out []rowStrategy
	for _, f := range s.RowFields {
		out = append(out, rowStrategy{name: f, extract: arrayField(f)})
	}
	return append(out, rowStrategy{name: InputRowsField, extract: arrayField(InputRowsField)})
}

func averageStrategies(s Schema) []averageStrategy {
	var out []averageStrategy
	for _, f := range s.AverageFields {
		out = append(out, averageStrategy{name: f, extract: numberField(f)})
	}
	return out
}

// Normalize reconciles a stored document of any vintage into a Record with fully populated
// computed rows. Stored finite values win over re-derivation; anything missing or malformed
// is re-derived from the fields that are present, and rows that still lack a derived quantity
// are dropped. A nil document yields ErrNoRecordFound.
func Normalize(doc Document, f Formula) (Record, error) {
	if doc == nil {
		return Record{}, ErrNoRecordFound
	}
	s := f.Schema()
	rec := Record{
		Experiment: s.Experiment,
		CreatedAt:  documentTime(doc["createdAt"]),
	}

	var candidates []any
	for _, st := range rowStrategies(s) {
		if rows, ok := st.extract(doc); ok {
			candidates = rows
			rec.Source = st.name
			break
		}
	}

	rec.ComputedRows = make([]ComputedRow, 0, len(candidates))
	for _, c := range candidates {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		row := make(ComputedRow, len(s.Inputs)+len(s.Derived))
		for _, field := range s.Fields() {
			if v, ok := coerceNumber(m[field]); ok {
				row[field] = v
			}
		}
		row = f.Complete(row)
		if s.Complete(row) {
			rec.ComputedRows = append(rec.ComputedRows, row)
		}
	}

	if raw, ok := arrayField(InputRowsField)(doc); ok {
		rec.RawRows = documentRawRows(raw)
	} else {
		rec.RawRows = rawRowsFrom(rec.ComputedRows, s)
	}

	for _, st := range averageStrategies(s) {
		if avg, ok := st.extract(doc); ok {
			rec.AverageRatio = ptr(avg)
			break
		}
	}
	if rec.AverageRatio == nil {
		if avg, ok := AverageRatio(rec.ComputedRows, s.Ratio); ok {
			rec.AverageRatio = ptr(avg)
		}
	}

	return rec, nil
}

// coerceNumber turns a stored value into a finite number. Strings are parsed as entered
// text; booleans, objects and non-finite values are malformed.
func coerceNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		var err error
		if f, err = strconv.ParseFloat(n.String(), 64); err != nil {
			return 0, false
		}
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		return ParseNumber(n)
	default:
		return 0, false
	}
	if !finite(f) {
		return 0, false
	}
	return f, true
}

func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func documentRawRows(items []any) []RawRow {
	out := make([]RawRow, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		r := RawRow{Fields: make(map[string]string, len(m))}
		for k, v := range m {
			if k == "id" {
				r.ID = textValue(v)
				continue
			}
			r.Fields[k] = textValue(v)
		}
		out = append(out, r)
	}
	return out
}

// rawRowsFrom rebuilds entered rows from computed rows for documents that never stored them.
func rawRowsFrom(rows []ComputedRow, s Schema) []RawRow {
	out := make([]RawRow, 0, len(rows))
	for i, row := range rows {
		r := RawRow{ID: strconv.Itoa(i + 1), Fields: make(map[string]string, len(s.Inputs))}
		for _, f := range s.Inputs {
			if v, ok := row.Value(f); ok {
				r.Fields[f] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		out = append(out, r)
	}
	return out
}

// documentTime accepts RFC 3339 text, Unix milliseconds, or a {seconds, nanoseconds}
// timestamp object as exported from the earlier document store.
func documentTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC()
		}
	case json.Number, float64:
		if ms, ok := coerceNumber(t); ok {
			return time.UnixMilli(int64(ms)).UTC()
		}
	case map[string]any:
		for _, keys := range [][2]string{{"seconds", "nanoseconds"}, {"_seconds", "_nanoseconds"}} {
			sec, ok := coerceNumber(t[keys[0]])
			if !ok {
				continue
			}
			nsec, _ := coerceNumber(t[keys[1]])
			return time.Unix(int64(sec), int64(nsec)).UTC()
		}
	}
	return time.Time{}
}
