package calibration

import "math"

// leastSquaresEpsilon bounds n·Σx² − (Σx)² below which the x spread is treated as degenerate.
const leastSquaresEpsilon = 1e-12

// AverageRatio is the mean of field over rows. A row whose ratio is absent contributes 0 to
// the sum but still counts in the denominator. It reports false when there are no rows.
func AverageRatio(rows []ComputedRow, field string) (float64, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range rows {
		if v, ok := r.Value(field); ok {
			sum += v
		}
	}
	return sum / float64(len(rows)), true
}

// PairwiseSlope averages the slope between every unordered pair of points with distinct x.
// With fewer than two points, or no pair with distinct x, it returns 0.
func PairwiseSlope(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	var sum float64
	var n int
	for i := 0; i < len(points)-1; i++ {
		for j := i + 1; j < len(points); j++ {
			dx := points[j].X - points[i].X
			if dx == 0 {
				continue
			}
			sum += (points[j].Y - points[i].Y) / dx
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Line is y = Slope·x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line at x.
func (l Line) At(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// LeastSquaresFit is the ordinary least-squares line through points. It reports false for no
// points or when the x values have no usable spread.
func LeastSquaresFit(points []Point) (Line, bool) {
	if len(points) == 0 {
		return Line{}, false
	}
	var sx, sy, sxx, sxy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
		sxx += p.X * p.X
		sxy += p.X * p.Y
	}
	n := float64(len(points))
	denom := n*sxx - sx*sx
	if !finite(denom) || math.Abs(denom) < leastSquaresEpsilon {
		return Line{}, false
	}
	m := (n*sxy - sx*sy) / denom
	return Line{Slope: m, Intercept: (sy - m*sx) / n}, true
}

// FitPoints extracts the (x, y) pairs for the schema's fit axes, skipping rows where either
// value is absent.
func FitPoints(rows []ComputedRow, s Schema) []Point {
	points := make([]Point, 0, len(rows))
	for _, r := range rows {
		x, okx := r.Value(s.FitX)
		y, oky := r.Value(s.FitY)
		if okx && oky {
			points = append(points, Point{X: x, Y: y})
		}
	}
	return points
}

// Aggregate computes the average ratio and the experiment's best-fit line over rows.
func Aggregate(rows []ComputedRow, s Schema) AggregateResult {
	var res AggregateResult
	if avg, ok := AverageRatio(rows, s.Ratio); ok {
		res.AverageRatio = ptr(avg)
	}

	points := FitPoints(rows, s)
	res.BestFit.Method = s.Fit
	switch s.Fit {
	case FitLeastSquares:
		if line, ok := LeastSquaresFit(points); ok {
			res.BestFit.Slope = line.Slope
			res.BestFit.Intercept = ptr(line.Intercept)
			res.BestFit.OK = true
		}
	default:
		res.BestFit.Slope = PairwiseSlope(points)
		res.BestFit.OK = true
	}
	return res
}
