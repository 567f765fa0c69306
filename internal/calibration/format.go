package calibration

import (
	"math"
	"strconv"
	"strings"
)

// FormatScientific renders v as "{sign}{mantissa} x 10^{exponent}" where the exponent is
// floor(log10(|v|)) and the mantissa is printed to five places. Rounding the mantissa can
// carry it to 10 (9.999999 renders as "10.00000 x 10^0"). Non-finite values render as "-"
// and zero as "0". Output is locale-independent.
func FormatScientific(v float64) string {
	if !finite(v) {
		return "-"
	}
	if v == 0 {
		return "0"
	}
	// The shortest exact decimal form gives floor(log10) without math.Log10's rounding error.
	s := strconv.FormatFloat(math.Abs(v), 'e', -1, 64)
	digits, exp, _ := strings.Cut(s, "e")
	e, err := strconv.Atoi(exp)
	if err != nil {
		return "-"
	}
	m, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return "-"
	}
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatFloat(m, 'f', 5, 64))
	b.WriteString(" x 10^")
	b.WriteString(strconv.Itoa(e))
	return b.String()
}

// FormatFixed renders v with a fixed number of decimal places, or "-" when non-finite.
func FormatFixed(v float64, places int) string {
	if !finite(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', places, 64)
}

// FormatOptional applies format to *v, rendering nil as "-".
func FormatOptional(v *float64, format func(float64) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

// CellFormat selects how a column value is displayed.
type CellFormat int

const (
	CellPlain      CellFormat = iota // shortest exact decimal
	CellScientific                   // FormatScientific
	CellRatio                        // five decimal places
	CellHead                         // three decimal places
	CellRounded                      // nearest integer, halves rounded up
)

// Column is one displayed column of a computed-row table.
type Column struct {
	Field  string
	Header string
	Format CellFormat
}

// FormatCell renders a row's value for column c, "-" when absent.
func FormatCell(row ComputedRow, c Column) string {
	v, ok := row.Value(c.Field)
	if !ok {
		return "-"
	}
	switch c.Format {
	case CellScientific:
		return FormatScientific(v)
	case CellRatio:
		return FormatFixed(v, 5)
	case CellHead:
		return FormatFixed(v, 3)
	case CellRounded:
		return FormatFixed(math.Floor(v+0.5), 0)
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// FormatSlope renders a best-fit slope the way result summaries show it.
func FormatSlope(fit BestFit) string {
	if !fit.OK {
		return "-"
	}
	if fit.Method == FitLeastSquares {
		return FormatScientific(fit.Slope)
	}
	return FormatFixed(fit.Slope, 6)
}
