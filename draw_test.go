package clickseg

import (
	"image"
	"image/color"
	"testing"
)

func TestAnnotator_Label(t *testing.T) {
	a, err := NewAnnotator("")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	img := image.NewRGBA(image.Rect(0, 0, 120, 40))
	a.Label(img, "score 0.93", 4, 4, color.White)

	lit := false
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 128 {
			lit = true
			break
		}
	}
	if !lit {
		t.Fatal("文字没有绘制到图片上")
	}
}

func TestAnnotator_SetSize(t *testing.T) {
	a, err := NewAnnotator("")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	face := a.face
	if err := a.SetSize(14); err != nil {
		t.Fatal(err)
	}
	if a.face != face {
		t.Fatal("相同大小不应重建 Face")
	}
	if err := a.SetSize(20); err != nil {
		t.Fatal(err)
	}
	if a.face == face || a.fontSize != 20 {
		t.Fatal("字体大小未更新")
	}
}

func TestNewAnnotator_MissingFont(t *testing.T) {
	if _, err := NewAnnotator("./fonts/not-exist.ttf"); err == nil {
		t.Fatal("字体不存在时应返回错误")
	}
}

func TestDrawMarker(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	green := color.RGBA{G: 255, A: 255}
	DrawMarker(img, 6, 6, 5, green)

	if got := img.RGBAAt(7, 7); got != green {
		t.Fatalf("(7,7) = %v, 期望 %v", got, green)
	}
	if got := img.RGBAAt(5, 5); got != (color.RGBA{}) {
		t.Fatalf("(5,5) 不应被绘制, 实际 %v", got)
	}
}
