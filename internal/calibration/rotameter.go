package calibration

import "github.com/lox/flowcal/internal/units"

// RotameterTankVolume is the collected volume per trial, m³.
const RotameterTankVolume = 5e-3

// Rotameter compares the rotameter's indicated flow against the flow measured by timing a
// fixed tank volume. The ratio is the correction factor cf = qact / qrot_m3s.
type Rotameter struct {
	TankVolume float64
}

func NewRotameter() *Rotameter {
	return &Rotameter{TankVolume: RotameterTankVolume}
}

var rotameterSchema = Schema{
	Experiment:    ExperimentRotameter,
	Title:         "Calibration of Rotameter",
	Collection:    "flowCalibration",
	Inputs:        []string{"qrot", "time"},
	Derived:       []string{"qrot_m3s", "qact", "cf"},
	Ratio:         "cf",
	FitX:          "qrot_m3s",
	FitY:          "qact",
	Fit:           FitPairwise,
	RowFields:     []string{"data", "computed"},
	AverageFields: []string{"avgCorrectionFactor", "avgCf"},
	Columns: []Column{
		{Field: "qrot", Header: "qrot(L/h)", Format: CellPlain},
		{Field: "time", Header: "t(s)", Format: CellPlain},
		{Field: "qact", Header: "Q_act", Format: CellScientific},
		{Field: "qrot_m3s", Header: "qrot(m3/s)", Format: CellScientific},
		{Field: "cf", Header: "C_f", Format: CellRatio},
	},
}

func (r *Rotameter) Schema() Schema {
	return rotameterSchema
}

func (r *Rotameter) Complete(row ComputedRow) ComputedRow {
	out := row.Clone()

	out.fill("qrot_m3s", func() (float64, bool) {
		qrot, ok := out.Value("qrot")
		return units.FlowToSI(qrot, units.LitresPerHour), ok
	})
	out.fill("qact", func() (float64, bool) {
		t, ok := out.Value("time")
		if !ok || t <= 0 {
			return 0, false
		}
		return r.TankVolume / t, true
	})
	out.fill("cf", func() (float64, bool) {
		qrot, ok := out.Value("qrot_m3s")
		if !ok || qrot <= 0 {
			return 0, false
		}
		qact, ok := out.Value("qact")
		return qact / qrot, ok
	})

	return out
}
