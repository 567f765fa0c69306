package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lox/flowcal/internal/calibration"
)

func printRun(w io.Writer, s calibration.Schema, rows []calibration.ComputedRow, agg calibration.AggregateResult, createdAt time.Time) error {
	fmt.Fprintln(w, s.Title)
	if !createdAt.IsZero() {
		fmt.Fprintf(w, "Recorded %s\n", createdAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		headers = append(headers, c.Header)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, row := range rows {
		cells := make([]string, 0, len(s.Columns))
		for _, c := range s.Columns {
			cells = append(cells, calibration.FormatCell(row, c))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average %s: %s\n", s.Ratio, calibration.FormatOptional(agg.AverageRatio, func(v float64) string {
		return calibration.FormatFixed(v, 5)
	}))
	fmt.Fprintf(w, "Slope (%s): %s\n", agg.BestFit.Method, calibration.FormatSlope(agg.BestFit))
	return nil
}
