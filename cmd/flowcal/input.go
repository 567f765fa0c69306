package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lox/flowcal/internal/calibration"
)

// readRows loads measurement rows from a CSV file with a header line, or from JSON holding
// either an array of rows or an object with a "rows" array.
func readRows(path string) ([]calibration.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return parseCSVRows(f)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return parseJSONRows(b)
}

func parseCSVRows(r io.Reader) ([]calibration.RawRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []calibration.RawRow
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line+1, err)
		}

		row := calibration.RawRow{ID: strconv.Itoa(line), Fields: make(map[string]string, len(header))}
		for i, name := range header {
			if i >= len(record) || name == "" {
				continue
			}
			v := strings.TrimSpace(record[i])
			if name == "id" {
				if v != "" {
					row.ID = v
				}
				continue
			}
			row.Fields[name] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseJSONRows(b []byte) ([]calibration.RawRow, error) {
	b = bytes.TrimSpace(b)
	var rows []calibration.RawRow
	if bytes.HasPrefix(b, []byte("[")) {
		if err := json.Unmarshal(b, &rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
	} else {
		var wrapped struct {
			Rows []calibration.RawRow `json:"rows"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		rows = wrapped.Rows
	}

	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = strconv.Itoa(i + 1)
		}
	}
	return rows, nil
}

// editRows removes the rows named in drop, then appends one row per spec. A spec is a
// comma-separated list of field=value pairs such as "qrot=360,time=25".
func editRows(rs *calibration.RowSet, drop, specs []string) error {
	for _, id := range drop {
		if !rs.Remove(id) {
			return fmt.Errorf("--drop %s: no such row", id)
		}
	}
	for _, spec := range specs {
		id := rs.Add()
		for _, pair := range strings.Split(spec, ",") {
			field, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("--row %q: expected field=value, got %q", spec, pair)
			}
			if !rs.Update(id, strings.TrimSpace(field), strings.TrimSpace(value)) {
				return fmt.Errorf("--row %q: unknown field %q", spec, strings.TrimSpace(field))
			}
		}
	}
	return nil
}
