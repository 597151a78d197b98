package mask

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/getcharzp/go-clickseg"
)

func filledImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func noisyImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i*37 + 11)
	}
	return img
}

func TestCellSpan_Partition(t *testing.T) {
	for src := 1; src <= 9; src++ {
		for dst := src; dst <= 40; dst++ {
			hits := make([]int, dst)
			prevEnd := 0
			for i := 0; i < src; i++ {
				start, end := cellSpan(i, src, dst)
				if start != prevEnd {
					t.Fatalf("src=%d dst=%d: 单元 %d 起点 %d, 上一单元终点 %d", src, dst, i, start, prevEnd)
				}
				for p := start; p < end; p++ {
					hits[p]++
				}
				prevEnd = end
			}
			if prevEnd != dst {
				t.Fatalf("src=%d dst=%d: 覆盖终点 %d", src, dst, prevEnd)
			}
			for p, n := range hits {
				if n != 1 {
					t.Fatalf("src=%d dst=%d: 像素 %d 被写入 %d 次", src, dst, p, n)
				}
			}
		}
	}
}

func TestOverlay_EndToEnd(t *testing.T) {
	black := color.RGBA{A: 255}
	base := filledImage(4, 4, black)
	m := Mask{Width: 2, Height: 2, Data: []float32{5, 0, 0, 0}}

	out, err := Overlay(base, m, color.RGBA{G: 255, A: 255}, 0.5, 2)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := black
			if x < 2 && y < 2 {
				want = color.RGBA{G: 127, A: 255}
			}
			if got := out.RGBAAt(x, y); got != want {
				t.Fatalf("(%d,%d) = %v, 期望 %v", x, y, got, want)
			}
		}
	}
	if base.RGBAAt(0, 0) != black {
		t.Fatal("Overlay 修改了底图")
	}
}

func TestOverlay_AlphaZeroIsNoop(t *testing.T) {
	base := noisyImage(13, 7)
	m := Mask{Width: 3, Height: 2, Data: []float32{9, 9, 9, 9, 9, 9}}

	out, err := Overlay(base, m, color.RGBA{R: 255, A: 255}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Pix, base.Pix) {
		t.Fatal("alpha=0 时输出应与输入逐字节相同")
	}
}

func TestOverlay_AlphaOneSetsColor(t *testing.T) {
	base := noisyImage(10, 9)
	m := Mask{Width: 3, Height: 4, Data: make([]float32, 12)}
	for i := range m.Data {
		m.Data[i] = float32(i) + 1
	}
	c := color.RGBA{R: 12, G: 200, B: 77, A: 255}

	out, err := Overlay(base, m, c, 1, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != c.R || out.Pix[i+1] != c.G || out.Pix[i+2] != c.B {
			t.Fatalf("像素 %d RGB = %v", i/4, out.Pix[i:i+3])
		}
		if out.Pix[i+3] != base.Pix[i+3] {
			t.Fatalf("像素 %d 的 Alpha 被修改", i/4)
		}
	}
}

func TestPaint_NonMultipleTarget(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 7, 5))
	m := Mask{Width: 3, Height: 2, Data: []float32{0, 0, 1, 0, 0, 0}}
	if err := Paint(dst, m, color.RGBA{R: 255}, 0.5); err != nil {
		t.Fatal(err)
	}
	// 单元 (2,0) 覆盖 x∈[4,7), y∈[0,2)
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			painted := dst.RGBAAt(x, y).R == 255
			want := x >= 4 && y < 2
			if painted != want {
				t.Fatalf("(%d,%d) painted=%v", x, y, painted)
			}
		}
	}
}

func TestPaint_Errors(t *testing.T) {
	m := Mask{Width: 2, Height: 2, Data: []float32{1, 1, 1, 1}}
	err := Paint(image.NewRGBA(image.Rect(0, 0, 0, 4)), m, color.RGBA{}, 0)
	if !errors.Is(err, clickseg.ErrInvalidCanvasState) {
		t.Fatalf("期望 ErrInvalidCanvasState, 实际 %v", err)
	}
	bad := Mask{Width: 2, Height: 2, Data: []float32{1}}
	err = Paint(image.NewRGBA(image.Rect(0, 0, 4, 4)), bad, color.RGBA{}, 0)
	if !errors.Is(err, clickseg.ErrShapeMismatch) {
		t.Fatalf("期望 ErrShapeMismatch, 实际 %v", err)
	}
}

func TestBinary(t *testing.T) {
	m := Mask{Width: 2, Height: 2, Data: []float32{3, -1, -1, 0.5}}
	g, err := Binary(m, 0, 5, 3)
	if err != nil {
		t.Fatal(err)
	}
	// x 区间 [0,2) [2,5), y 区间 [0,1) [1,3)
	want := []uint8{
		255, 255, 0, 0, 0,
		0, 0, 255, 255, 255,
		0, 0, 255, 255, 255,
	}
	if !bytes.Equal(g.Pix, want) {
		t.Fatalf("Binary = %v", g.Pix)
	}
	if n := Area(m, 0); n != 2 {
		t.Fatalf("Area = %d", n)
	}
}

func TestClone_SubImage(t *testing.T) {
	src := noisyImage(6, 6)
	sub := src.SubImage(image.Rect(2, 3, 5, 6)).(*image.RGBA)
	dst := Clone(sub)
	if dst.Bounds() != image.Rect(0, 0, 3, 3) {
		t.Fatalf("Bounds = %v", dst.Bounds())
	}
	if dst.RGBAAt(0, 0) != src.RGBAAt(2, 3) || dst.RGBAAt(2, 2) != src.RGBAAt(4, 5) {
		t.Fatal("Clone 像素错误")
	}
}
