package mask

import (
	"fmt"
	"image"
	"image/color"

	"github.com/getcharzp/go-clickseg"
)

// cellSpan mask 第 i 个单元在目标轴上覆盖的区间 [start, end)
//
// 用整数运算计算 floor(i*dst/src) 与 floor((i+1)*dst/src),
// 相邻单元首尾相接, 全部单元恰好覆盖 [0, dst)
func cellSpan(i, src, dst int) (start, end int) {
	return i * dst / src, (i + 1) * dst / src
}

// CellRect mask 单元 (x, y) 在 targetW×targetH 目标上覆盖的矩形
func CellRect(m Mask, x, y, targetW, targetH int) image.Rectangle {
	x0, x1 := cellSpan(x, m.Width, targetW)
	y0, y1 := cellSpan(y, m.Height, targetH)
	return image.Rect(x0, y0, x1, y1)
}

func checkTarget(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: 目标尺寸 %dx%d", clickseg.ErrInvalidCanvasState, w, h)
	}
	return nil
}

// Paint 将 logit 大于阈值的单元所覆盖的像素 RGB 置为 c, Alpha 不变
//
// dst 通常是底图的副本, 之后再与底图做 Blend
//
// # Params:
//
//	dst: 被绘制的图片, 尺寸即目标尺寸
//	m: 低分辨率 mask
//	c: 叠加颜色
//	threshold: 激活阈值
func Paint(dst *image.RGBA, m Mask, c color.RGBA, threshold float32) error {
	if err := m.validate(); err != nil {
		return err
	}
	b := dst.Bounds()
	tw, th := b.Dx(), b.Dy()
	if err := checkTarget(tw, th); err != nil {
		return err
	}

	for y := 0; y < m.Height; y++ {
		y0, y1 := cellSpan(y, m.Height, th)
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) <= threshold {
				continue
			}
			x0, x1 := cellSpan(x, m.Width, tw)
			for py := y0; py < y1; py++ {
				row := dst.PixOffset(b.Min.X, b.Min.Y+py)
				for px := x0; px < x1; px++ {
					i := row + px*4
					dst.Pix[i] = c.R
					dst.Pix[i+1] = c.G
					dst.Pix[i+2] = c.B
				}
			}
		}
	}
	return nil
}

// Overlay 返回 base 与 mask 着色副本按 alpha 混合后的新图片, base 不被修改
//
// # Params:
//
//	base: 干净的底图
//	m: 低分辨率 mask
//	c: 叠加颜色
//	alpha: 混合系数 [0, 1]
//	threshold: 激活阈值
func Overlay(base *image.RGBA, m Mask, c color.RGBA, alpha float64, threshold float32) (*image.RGBA, error) {
	out := Clone(base)
	painted := Clone(base)
	if err := Paint(painted, m, c, threshold); err != nil {
		return nil, err
	}
	if err := Blend(out, painted, alpha); err != nil {
		return nil, err
	}
	return out, nil
}

// Binary 将 mask 放大到 w×h 并二值化, 大于阈值为 255, 否则为 0
func Binary(m Mask, threshold float32, w, h int) (*image.Gray, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := checkTarget(w, h); err != nil {
		return nil, err
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < m.Height; y++ {
		y0, y1 := cellSpan(y, m.Height, h)
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) <= threshold {
				continue
			}
			x0, x1 := cellSpan(x, m.Width, w)
			for py := y0; py < y1; py++ {
				row := out.Pix[py*out.Stride : py*out.Stride+w]
				for px := x0; px < x1; px++ {
					row[px] = 255
				}
			}
		}
	}
	return out, nil
}

// Area 大于阈值的单元个数
func Area(m Mask, threshold float32) int {
	n := 0
	for _, v := range m.Data {
		if v > threshold {
			n++
		}
	}
	return n
}

// Clone 复制图片, 结果的 Bounds 从 (0, 0) 开始
func Clone(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		s := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[s:s+b.Dx()*4])
	}
	return dst
}
