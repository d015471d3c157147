package export

import (
	"fmt"
	"html"
	"math"
	"strings"
)

// TrajectoryToSVG draws power against time as a polyline on a dark
// background. Non-finite samples are skipped. It returns "" when fewer than
// two drawable samples remain.
func TrajectoryToSVG(times, powers []float64, width, height int, strokeColor, title string) string {
	type point struct{ X, Y float64 }
	points := make([]point, 0, len(powers))
	for i := range powers {
		if i >= len(times) {
			break
		}
		if math.IsNaN(powers[i]) || math.IsInf(powers[i], 0) {
			continue
		}
		points = append(points, point{times[i], powers[i]})
	}
	if len(points) < 2 || width <= 0 || height <= 0 {
		return ""
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	// leave room for the title and axis labels
	const margin = 40
	plotW := float64(width - 2*margin)
	plotH := float64(height - 2*margin)
	if plotW <= 0 || plotH <= 0 {
		plotW, plotH = float64(width), float64(height)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
	if title != "" {
		fmt.Fprintf(&sb, `<text x="%d" y="24" fill="#cccccc" font-family="monospace" font-size="14" text-anchor="middle">%s</text>
`, width/2, html.EscapeString(title))
	}
	fmt.Fprintf(&sb, `<text x="%d" y="%d" fill="#888888" font-family="monospace" font-size="11" text-anchor="middle">t [s]</text>
<text x="8" y="%d" fill="#888888" font-family="monospace" font-size="11">P</text>
<text x="8" y="%d" fill="#888888" font-family="monospace" font-size="10">%.3g</text>
<text x="8" y="%d" fill="#888888" font-family="monospace" font-size="10">%.3g</text>
`, width/2, height-8, height/2, margin, maxY, height-margin, minY)

	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, html.EscapeString(strokeColor))
	for i, p := range points {
		x := margin + (p.X-minX)/rangeX*plotW
		y := margin + plotH - (p.Y-minY)/rangeY*plotH
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
