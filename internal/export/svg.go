// Package export renders stored profiles to files outside the terminal.
package export

import (
	"fmt"
	"math"
	"strings"
)

type point struct{ X, Y float64 }

// ProfileToSVG draws values against the node positions in index as a line.
// Pairs with a non-finite coordinate are skipped. It returns "" when fewer
// than two points remain.
func ProfileToSVG(index, values []float64, width, height int, strokeColor, caption string) string {
	n := len(index)
	if len(values) < n {
		n = len(values)
	}
	points := make([]point, 0, n)
	for i := 0; i < n; i++ {
		if !finite(index[i]) || !finite(values[i]) {
			continue
		}
		points = append(points, point{index[i], values[i]})
	}
	if len(points) < 2 {
		return ""
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	loY, hiY := minY, maxY
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.05
	maxX += rangeX * 0.05
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	if caption != "" {
		sb.WriteString(fmt.Sprintf(`<text x="8" y="16" fill="#888899" font-family="monospace" font-size="12">%s</text>
`, escape(caption)))
	}
	sb.WriteString(fmt.Sprintf(`<text x="8" y="%d" fill="#666688" font-family="monospace" font-size="10">r %g .. %g, %g .. %g</text>
`, height-6, points[0].X, points[len(points)-1].X, loY, hiY))

	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor))
	for i, p := range points {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
