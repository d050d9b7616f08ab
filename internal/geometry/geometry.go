// Package geometry provides the pure spatial math used by the floor layout
// engine: grid snapping, axis-aligned overlap tests, and alignment and
// distribution of rectangle groups. Nothing in this package holds state.
package geometry

import (
	"math"
	"sort"
)

// Rect is an axis-aligned rectangle positioned at its top-left corner.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Edge selects the reference edge for Align.
type Edge string

const (
	EdgeLeft    Edge = "left"
	EdgeRight   Edge = "right"
	EdgeTop     Edge = "top"
	EdgeBottom  Edge = "bottom"
	EdgeCenterX Edge = "centerX"
	EdgeCenterY Edge = "centerY"
)

// Axis selects the direction for Distribute.
type Axis string

const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// Snap rounds value to the nearest multiple of gridSize. A non-positive grid
// leaves the value untouched.
func Snap(value, gridSize float64) float64 {
	if gridSize <= 0 {
		return value
	}
	return math.Round(value/gridSize) * gridSize
}

// Overlaps reports whether the interiors of a and b intersect. Rectangles
// that only touch along an edge do not overlap.
func Overlaps(a, b Rect) bool {
	return a.X < b.X+b.W && a.X+a.W > b.X && a.Y < b.Y+b.H && a.Y+a.H > b.Y
}

// Align repositions every rectangle so the requested edge sits on a shared
// reference coordinate: the minimum for left/top, the maximum for
// right/bottom, and the mean of centers for the center edges. The input slice
// is not modified.
func Align(rects []Rect, edge Edge) []Rect {
	out := append([]Rect(nil), rects...)
	if len(out) < 2 {
		return out
	}

	switch edge {
	case EdgeLeft:
		ref := out[0].X
		for _, r := range out[1:] {
			ref = math.Min(ref, r.X)
		}
		for i := range out {
			out[i].X = ref
		}
	case EdgeRight:
		ref := out[0].X + out[0].W
		for _, r := range out[1:] {
			ref = math.Max(ref, r.X+r.W)
		}
		for i := range out {
			out[i].X = ref - out[i].W
		}
	case EdgeTop:
		ref := out[0].Y
		for _, r := range out[1:] {
			ref = math.Min(ref, r.Y)
		}
		for i := range out {
			out[i].Y = ref
		}
	case EdgeBottom:
		ref := out[0].Y + out[0].H
		for _, r := range out[1:] {
			ref = math.Max(ref, r.Y+r.H)
		}
		for i := range out {
			out[i].Y = ref - out[i].H
		}
	case EdgeCenterX:
		sum := 0.0
		for _, r := range out {
			sum += r.X + r.W/2
		}
		ref := sum / float64(len(out))
		for i := range out {
			out[i].X = ref - out[i].W/2
		}
	case EdgeCenterY:
		sum := 0.0
		for _, r := range out {
			sum += r.Y + r.H/2
		}
		ref := sum / float64(len(out))
		for i := range out {
			out[i].Y = ref - out[i].H/2
		}
	}

	return out
}

// Distribute spaces rectangles evenly along the axis. The first and last
// rectangles (by position) stay where they are; only interior rectangles move.
// Spacing is computed so the gaps between consecutive rectangles are equal.
func Distribute(rects []Rect, axis Axis) []Rect {
	out := append([]Rect(nil), rects...)
	if len(out) < 3 {
		return out
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if axis == AxisVertical {
			return out[order[i]].Y < out[order[j]].Y
		}
		return out[order[i]].X < out[order[j]].X
	})

	first := out[order[0]]
	last := out[order[len(order)-1]]

	if axis == AxisVertical {
		span := (last.Y + last.H) - first.Y
		occupied := 0.0
		for _, idx := range order {
			occupied += out[idx].H
		}
		gap := (span - occupied) / float64(len(order)-1)
		cursor := first.Y + first.H + gap
		for _, idx := range order[1 : len(order)-1] {
			out[idx].Y = cursor
			cursor += out[idx].H + gap
		}
		return out
	}

	span := (last.X + last.W) - first.X
	occupied := 0.0
	for _, idx := range order {
		occupied += out[idx].W
	}
	gap := (span - occupied) / float64(len(order)-1)
	cursor := first.X + first.W + gap
	for _, idx := range order[1 : len(order)-1] {
		out[idx].X = cursor
		cursor += out[idx].W + gap
	}
	return out
}
