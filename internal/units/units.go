// Package units converts the raw laboratory units entered on the bench into SI.
package units

const (
	// LitresPerHour is the divisor taking L/h to m³/s.
	LitresPerHour = 1000 * 3600

	// KgfPerCm2ToPa takes a pressure in kgf/cm² to pascals.
	KgfPerCm2ToPa = 98066.5
)

// FlowToSI converts a volumetric flow to m³/s by dividing by the unit's rate factor.
// Non-finite input yields a non-finite result.
func FlowToSI(value, rateFactor float64) float64 {
	return value / rateFactor
}

// PressureToSI converts a pressure (or pressure difference) to pascals.
func PressureToSI(value, toPa float64) float64 {
	return value * toPa
}
