package geometry

import (
	"math"
	"testing"
)

func pt(x, y float64) Vertex {
	return Vertex{X: &x, Y: &y}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFromVertices(t *testing.T) {
	tests := []struct {
		name  string
		verts []Vertex
		want  BBox
		ok    bool
	}{
		{
			name:  "rectangle polygon",
			verts: []Vertex{pt(0.1, 0.2), pt(0.4, 0.2), pt(0.4, 0.5), pt(0.1, 0.5)},
			want:  BBox{0.1, 0.2, 0.4, 0.5},
			ok:    true,
		},
		{
			name:  "unordered points",
			verts: []Vertex{pt(0.9, 0.1), pt(0.3, 0.7), pt(0.5, 0.4)},
			want:  BBox{0.3, 0.1, 0.9, 0.7},
			ok:    true,
		},
		{
			name:  "missing coordinates default to zero",
			verts: []Vertex{{}, pt(0.5, 0.5)},
			want:  BBox{0, 0, 0.5, 0.5},
			ok:    true,
		},
		{
			name:  "single point",
			verts: []Vertex{pt(0.25, 0.75)},
			want:  BBox{0.25, 0.75, 0.25, 0.75},
			ok:    true,
		},
		{
			name: "empty",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromVertices(tt.verts)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			for i := range got {
				if !almostEqual(got[i], tt.want[i]) {
					t.Errorf("FromVertices() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestBBoxOverlay(t *testing.T) {
	o := BBox{0.1, 0.2, 0.4, 0.5}.Overlay()
	want := Overlay{Left: 10, Top: 20, Width: 30, Height: 30}
	if !almostEqual(o.Left, want.Left) || !almostEqual(o.Top, want.Top) ||
		!almostEqual(o.Width, want.Width) || !almostEqual(o.Height, want.Height) {
		t.Errorf("Overlay() = %+v, want %+v", o, want)
	}
}
