package api

import (
	"time"

	"github.com/lox/flowcal/internal/calibration"
)

// RunView is a calculation as returned to clients: the numbers plus their display strings.
type RunView struct {
	ID               string                    `json:"id,omitempty"`
	Experiment       string                    `json:"experiment"`
	Title            string                    `json:"title"`
	CreatedAt        *time.Time                `json:"createdAt,omitempty"`
	InputRows        []calibration.RawRow      `json:"inputRows"`
	Rows             []calibration.ComputedRow `json:"rows"`
	Columns          []string                  `json:"columns"`
	Table            [][]string                `json:"table"`
	AverageRatio     *float64                  `json:"averageRatio"`
	AverageRatioText string                    `json:"averageRatioText"`
	BestFit          calibration.BestFit       `json:"bestFit"`
	SlopeText        string                    `json:"slopeText"`
}

func newRunView(s calibration.Schema, raw []calibration.RawRow, rows []calibration.ComputedRow, agg calibration.AggregateResult) RunView {
	v := RunView{
		Experiment:       string(s.Experiment),
		Title:            s.Title,
		InputRows:        raw,
		Rows:             rows,
		Columns:          make([]string, 0, len(s.Columns)),
		Table:            make([][]string, 0, len(rows)),
		AverageRatio:     agg.AverageRatio,
		AverageRatioText: calibration.FormatOptional(agg.AverageRatio, formatRatio),
		BestFit:          agg.BestFit,
		SlopeText:        calibration.FormatSlope(agg.BestFit),
	}
	if v.InputRows == nil {
		v.InputRows = []calibration.RawRow{}
	}
	if v.Rows == nil {
		v.Rows = []calibration.ComputedRow{}
	}
	for _, c := range s.Columns {
		v.Columns = append(v.Columns, c.Header)
	}
	for _, row := range rows {
		cells := make([]string, 0, len(s.Columns))
		for _, c := range s.Columns {
			cells = append(cells, calibration.FormatCell(row, c))
		}
		v.Table = append(v.Table, cells)
	}
	return v
}

func formatRatio(v float64) string {
	return calibration.FormatFixed(v, 5)
}
