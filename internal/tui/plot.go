package tui

import (
	"math"

	"github.com/guptarohit/asciigraph"
)

// Finite drops NaN and infinite values, which the graph cannot scale.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Plot renders a profile column as an ASCII line graph. It returns "" when
// the column has no finite values.
func Plot(values []float64, caption string, width, height int) string {
	data := Finite(values)
	if len(data) == 0 {
		return ""
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}
