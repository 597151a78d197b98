package sam

import (
	"errors"
	"slices"
	"testing"

	"github.com/getcharzp/go-clickseg"
)

func TestMapClick(t *testing.T) {
	cases := []struct {
		x, y   float64
		w, h   int
		wx, wy float32
	}{
		{0, 0, 640, 480, 0, 0},
		{640, 480, 640, 480, 1024, 1024},
		{320, 120, 640, 480, 512, 256},
		{7, 3, 7, 3, 1024, 1024},
		{1, 3, 4, 4, 256, 768},
	}
	for _, tc := range cases {
		p, err := MapClick(tc.x, tc.y, tc.w, tc.h)
		if err != nil {
			t.Fatal(err)
		}
		want := []float32{tc.wx, tc.wy, 0, 0}
		if !slices.Equal(p.Coords, want) {
			t.Fatalf("MapClick(%v,%v,%d,%d) = %v, 期望 %v", tc.x, tc.y, tc.w, tc.h, p.Coords, want)
		}
		if !slices.Equal(p.Labels, []float32{1, -1}) {
			t.Fatalf("Labels = %v", p.Labels)
		}
	}
}

func TestMapClick_Range(t *testing.T) {
	for w := 1; w <= 50; w += 7 {
		for h := 1; h <= 50; h += 5 {
			for x := 0; x <= w; x++ {
				y := x * h / w
				p, err := MapClick(float64(x), float64(y), w, h)
				if err != nil {
					t.Fatal(err)
				}
				if p.Coords[0] < 0 || p.Coords[0] > ModelInputSize || p.Coords[1] < 0 || p.Coords[1] > ModelInputSize {
					t.Fatalf("(%d,%d) in %dx%d 映射到 %v", x, y, w, h, p.Coords[:2])
				}
			}
		}
	}
}

func TestMapClick_InvalidCanvas(t *testing.T) {
	for _, size := range [][2]int{{0, 10}, {10, 0}, {-1, 5}} {
		_, err := MapClick(1, 1, size[0], size[1])
		if !errors.Is(err, clickseg.ErrInvalidCanvasState) {
			t.Fatalf("%v: 期望 ErrInvalidCanvasState, 实际 %v", size, err)
		}
	}
}

func TestMapPoints(t *testing.T) {
	p, err := MapPoints([]Point{
		{X: 10, Y: 20, Label: LabelForeground},
		{X: 50, Y: 40, Label: LabelBackground},
	}, 100, 80)
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 3 {
		t.Fatalf("Len = %d, 期望包含占位点的 3", p.Len())
	}
	if !slices.Equal(p.Labels, []float32{1, 0, -1}) {
		t.Fatalf("Labels = %v", p.Labels)
	}
	if !slices.Equal(p.Coords, []float32{102.4, 256, 512, 512, 0, 0}) {
		t.Fatalf("Coords = %v", p.Coords)
	}

	box, err := MapPoints([]Point{
		{X: 0, Y: 0, Label: LabelBoxTopLeft},
		{X: 100, Y: 80, Label: LabelBoxBotRight},
	}, 100, 80)
	if err != nil {
		t.Fatal(err)
	}
	if box.Len() != 2 {
		t.Fatalf("框选时不应补占位点, Len = %d", box.Len())
	}

	if _, err := MapPoints(nil, 10, 10); err == nil {
		t.Fatal("没有提示点时应返回错误")
	}
}
