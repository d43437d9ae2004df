package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/olivier-w/climp-vu/internal/meter"
)

const (
	trackRune  = '─'
	needleRune = '█'
	peakRune   = '│'
	tickRune   = '┴'
)

// column maps a VU reading to a dial column through the needle angle, so
// the terminal face moves exactly like a needle would.
func column(amap meter.AngleMap, vu float64, width int) int {
	span := amap.MaxAngle - amap.MinAngle
	if width <= 1 || span == 0 {
		return 0
	}
	frac := (amap.AngleFor(vu) - amap.MinAngle) / span
	return int(math.Round(frac * float64(width-1)))
}

// scaleLabels lays out the scale mark labels, skipping labels that would
// collide with their left neighbour.
func scaleLabels(amap meter.AngleMap, width int) string {
	line := []rune(strings.Repeat(" ", width))
	lastEnd := -1
	for _, mark := range meter.ScaleMarks() {
		label := []rune(mark.Label)
		start := column(amap, mark.VU, width) - len(label)/2
		start = max(0, min(start, width-len(label)))
		if start <= lastEnd {
			continue
		}
		copy(line[start:], label)
		lastEnd = start + len(label)
	}
	return string(line)
}

// dialRunes draws the track with the peak marker and needle.
func dialRunes(amap meter.AngleMap, width int, vu, peak float64, showPeak bool) []rune {
	line := []rune(strings.Repeat(string(trackRune), width))
	for _, mark := range meter.ScaleMarks() {
		line[column(amap, mark.VU, width)] = tickRune
	}
	if showPeak {
		line[column(amap, peak, width)] = peakRune
	}
	line[column(amap, vu, width)] = needleRune
	return line
}

func renderScale(amap meter.AngleMap, width int) string {
	return scaleStyle.Render(scaleLabels(amap, width))
}

func renderDial(amap meter.AngleMap, width int, vu, peak float64, showPeak bool) string {
	line := dialRunes(amap, width, vu, peak, showPeak)
	redFrom := column(amap, 0, width) + 1

	var b strings.Builder
	var run []rune
	var runStyle *lipgloss.Style
	flush := func() {
		if len(run) > 0 {
			b.WriteString(runStyle.Render(string(run)))
			run = run[:0]
		}
	}
	for i, r := range line {
		style := &scaleStyle
		switch {
		case r == needleRune:
			style = &needleStyle
		case r == peakRune:
			style = &peakStyle
		case i >= redFrom:
			style = &redZoneStyle
		}
		if style != runStyle {
			flush()
			runStyle = style
		}
		run = append(run, r)
	}
	flush()
	return b.String()
}
