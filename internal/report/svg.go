package report

import (
	"strconv"
	"strings"

	"attendtrack/internal/stats"
)

// Line chart canvas.
const (
	ChartWidth      = 400.0
	ChartHeight     = 200.0
	ChartTopPadding = 30.0
)

// Point is an SVG coordinate.
type Point struct {
	X float64 `json:"cx"`
	Y float64 `json:"cy"`
}

// ChartPoints scales values onto the canvas. The largest value (at least 1) touches the
// top padding and zero sits on the baseline.
func ChartPoints(values []int) []Point {
	if len(values) == 0 {
		return nil
	}
	peak := 1
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	gaps := len(values) - 1
	if gaps == 0 {
		gaps = 1
	}
	step := ChartWidth / float64(gaps)
	out := make([]Point, 0, len(values))
	for i, v := range values {
		out = append(out, Point{
			X: float64(i) * step,
			Y: ChartHeight - (float64(v)/float64(peak))*(ChartHeight-ChartTopPadding),
		})
	}
	return out
}

// Polyline renders points as an SVG points attribute. No points gives "0,150".
func Polyline(points []Point) string {
	if len(points) == 0 {
		return "0,150"
	}
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, strconv.FormatFloat(p.X, 'f', -1, 64)+","+strconv.FormatFloat(p.Y, 'f', -1, 64))
	}
	return strings.Join(parts, " ")
}

// MonthlyPolyline renders the monthly series of a snapshot.
func MonthlyPolyline(series []stats.MonthPoint) string {
	values := make([]int, 0, len(series))
	for _, p := range series {
		values = append(values, p.Count)
	}
	return Polyline(ChartPoints(values))
}
