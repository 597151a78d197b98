package clickseg

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Annotator 在渲染帧上绘制点击标记和文字
type Annotator struct {
	font     *opentype.Font
	face     font.Face
	fontSize float64
}

// NewAnnotator 使用字体文件创建标注工具, fontPath 为空时使用内置 Go Regular 字体
//
// # Params:
//
//	fontPath: 字体路径
func NewAnnotator(fontPath string) (*Annotator, error) {
	fontBytes := goregular.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("打开字体文件失败：%w", err)
		}
		fontBytes = b
	}

	ttFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("解析字体文件失败：%w", err)
	}

	a := &Annotator{font: ttFont}
	if err := a.SetSize(14); err != nil {
		return nil, err
	}
	return a, nil
}

// SetSize 调整字体大小, 与当前大小相同时不重建 Face
func (a *Annotator) SetSize(fontSize float64) error {
	if a.face != nil && a.fontSize == fontSize {
		return nil
	}

	nf, err := opentype.NewFace(a.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("创建字体 Face 失败：%w", err)
	}
	if a.face != nil {
		a.face.Close()
	}

	a.face = nf
	a.fontSize = fontSize
	return nil
}

// Label 在 (x, y) 处绘制一行文字, y 为文字左上角
//
// 文字下方先铺一层半透明黑底, 保证在任意图片上可读
func (a *Annotator) Label(img draw.Image, text string, x, y int, c color.Color) {
	metrics := a.face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := metrics.Height.Ceil()
	width := font.MeasureString(a.face, text).Ceil()

	bg := image.Rect(x, y, x+width+4, y+height+2).Intersect(img.Bounds())
	draw.Draw(img, bg, image.NewUniform(color.NRGBA{A: 160}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: a.face,
		Dot:  fixed.Point26_6{X: fixed.I(x + 2), Y: fixed.I(y + 1 + ascent)},
	}
	d.DrawString(text)
}

// Close 释放字体资源
func (a *Annotator) Close() {
	if a.face != nil {
		a.face.Close()
		a.face = nil
	}
}

// DrawMarker 以 (x, y) 为左上角填充 size×size 的点击标记, 超出图片部分被裁剪
func DrawMarker(img draw.Image, x, y, size int, c color.Color) {
	r := image.Rect(x, y, x+size, y+size).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}
