package calibration

import (
	"math"

	"github.com/lox/flowcal/internal/units"
)

// VenturiGeometry is the fixed rig the venturimeter trials run on. All values are SI.
type VenturiGeometry struct {
	PipeArea   float64 // A1, inlet
	ThroatArea float64 // A2
	TankArea   float64 // collecting tank plan area
	RiseHeight float64 // timed rise in the collecting tank
	Density    float64
	Gravity    float64
}

const (
	venturiInletDiameter  = 0.02
	venturiThroatDiameter = 0.0125
	venturiTankLength     = 0.6
	venturiTankBreadth    = 0.4
)

// DefaultVenturiGeometry is the bench rig: 20 mm inlet, 12.5 mm throat, 0.6 x 0.4 m tank
// timed over a 5 cm rise.
func DefaultVenturiGeometry() VenturiGeometry {
	return VenturiGeometry{
		PipeArea:   circleArea(venturiInletDiameter),
		ThroatArea: circleArea(venturiThroatDiameter),
		TankArea:   venturiTankLength * venturiTankBreadth,
		RiseHeight: 0.05,
		Density:    1000,
		Gravity:    9.81,
	}
}

func circleArea(d float64) float64 {
	return math.Pi * d * d / 4
}

// Venturimeter compares the orifice-equation flow through the throat with the flow measured
// from the tank rise time. The ratio is the discharge coefficient Cd = Q_act / Q_theo.
type Venturimeter struct {
	Geometry VenturiGeometry
}

func NewVenturimeter() *Venturimeter {
	return &Venturimeter{Geometry: DefaultVenturiGeometry()}
}

var venturimeterSchema = Schema{
	Experiment:    ExperimentVenturimeter,
	Title:         "Calibration of Venturimeter",
	Collection:    "venturimeterCalibration",
	Inputs:        []string{"P1", "P2", "time"},
	Derived:       []string{"dP_kgcm2", "dP_Pa", "H_m", "Q_theo", "Q_act", "Cd"},
	Ratio:         "Cd",
	FitX:          "Q_theo",
	FitY:          "Q_act",
	Fit:           FitLeastSquares,
	RowFields:     []string{"data"},
	AverageFields: []string{"averageCd"},
	Columns: []Column{
		{Field: "P1", Header: "P1", Format: CellPlain},
		{Field: "P2", Header: "P2", Format: CellPlain},
		{Field: "time", Header: "t(s)", Format: CellPlain},
		{Field: "dP_Pa", Header: "ΔP(Pa)", Format: CellRounded},
		{Field: "H_m", Header: "H(m)", Format: CellHead},
		{Field: "Q_act", Header: "Q_act", Format: CellScientific},
		{Field: "Q_theo", Header: "Q_theo", Format: CellScientific},
		{Field: "Cd", Header: "Cd", Format: CellRatio},
	},
}

func (v *Venturimeter) Schema() Schema {
	return venturimeterSchema
}

// areaRatioSq is (A2/A1)². At or above 1 the orifice equation has no real solution.
func (g VenturiGeometry) areaRatioSq() float64 {
	r := g.ThroatArea / g.PipeArea
	return r * r
}

func (v *Venturimeter) Complete(row ComputedRow) ComputedRow {
	g := v.Geometry
	out := row.Clone()

	out.fill("dP_kgcm2", func() (float64, bool) {
		p1, ok1 := out.Value("P1")
		p2, ok2 := out.Value("P2")
		return p1 - p2, ok1 && ok2
	})
	out.fill("dP_Pa", func() (float64, bool) {
		dp, ok := out.Value("dP_kgcm2")
		return units.PressureToSI(dp, units.KgfPerCm2ToPa), ok
	})
	out.fill("H_m", func() (float64, bool) {
		dp, ok := out.Value("dP_Pa")
		return dp / (g.Density * g.Gravity), ok
	})
	out.fill("Q_theo", func() (float64, bool) {
		h, ok := out.Value("H_m")
		ratioSq := g.areaRatioSq()
		if !ok || !(ratioSq < 1) {
			return 0, false
		}
		// Negative head gives NaN, which fill rejects.
		return g.ThroatArea * math.Sqrt(2*g.Gravity*h/(1-ratioSq)), true
	})
	out.fill("Q_act", func() (float64, bool) {
		t, ok := out.Value("time")
		if !ok || t <= 0 {
			return 0, false
		}
		return g.TankArea * g.RiseHeight / t, true
	})
	out.fill("Cd", func() (float64, bool) {
		qt, ok := out.Value("Q_theo")
		if !ok || qt <= 0 {
			return 0, false
		}
		qa, ok := out.Value("Q_act")
		return qa / qt, ok
	})

	return out
}
