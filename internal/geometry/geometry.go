// Package geometry holds the normalized coordinate types shared by the
// message protocol and the field normalizer.
//
// All coordinates live in the document's normalized space: each value is in
// [0,1] relative to the page dimensions, with the origin at the top-left.
package geometry

import (
	"fmt"
	"math"
)

// Vertex is one point of a normalized polygon as it appears in extracted
// data. Either coordinate may be missing; missing coordinates read as 0.
type Vertex struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

func (v Vertex) xy() (float64, float64) {
	var x, y float64
	if v.X != nil {
		x = *v.X
	}
	if v.Y != nil {
		y = *v.Y
	}
	return x, y
}

// BBox is an axis-aligned rectangle [minX, minY, maxX, maxY].
type BBox [4]float64

// MinX returns the left edge.
func (b BBox) MinX() float64 { return b[0] }

// MinY returns the top edge.
func (b BBox) MinY() float64 { return b[1] }

// MaxX returns the right edge.
func (b BBox) MaxX() float64 { return b[2] }

// MaxY returns the bottom edge.
func (b BBox) MaxY() float64 { return b[3] }

// Width returns maxX - minX.
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns maxY - minY.
func (b BBox) Height() float64 { return b[3] - b[1] }

func (b BBox) String() string {
	return fmt.Sprintf("[%.4g,%.4g,%.4g,%.4g]", b[0], b[1], b[2], b[3])
}

// FromVertices reduces a polygon to its bounding rectangle.
// Returns false when there are no vertices to reduce.
func FromVertices(verts []Vertex) (BBox, bool) {
	if len(verts) == 0 {
		return BBox{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range verts {
		x, y := v.xy()
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return BBox{minX, minY, maxX, maxY}, true
}

// Overlay is a highlight rectangle expressed in percent of the rendered page,
// the form the document renderer consumes.
type Overlay struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Overlay converts the box to renderer percentages.
func (b BBox) Overlay() Overlay {
	return Overlay{
		Left:   b.MinX() * 100,
		Top:    b.MinY() * 100,
		Width:  b.Width() * 100,
		Height: b.Height() * 100,
	}
}
