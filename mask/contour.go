package mask

import (
	"image"
	"image/color"
	"image/draw"
)

// Boundary 返回所有边界单元的下标 (y*Width+x)
//
// 边界单元: 自身大于阈值, 且上下左右任一邻居(越界的不算)小于等于阈值。
// 单次扫描, 得到的是沿单元边缘的阶梯状轮廓
func Boundary(m Mask, threshold float32) []int {
	if m.validate() != nil {
		return nil
	}
	w, h := m.Width, m.Height
	var cells []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.At(x, y) <= threshold {
				continue
			}
			if (x > 0 && m.At(x-1, y) <= threshold) ||
				(x < w-1 && m.At(x+1, y) <= threshold) ||
				(y > 0 && m.At(x, y-1) <= threshold) ||
				(y < h-1 && m.At(x, y+1) <= threshold) {
				cells = append(cells, y*w+x)
			}
		}
	}
	return cells
}

// Outline 将边界单元映射为 targetW×targetH 上的矩形
func Outline(m Mask, threshold float32, targetW, targetH int) ([]image.Rectangle, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := checkTarget(targetW, targetH); err != nil {
		return nil, err
	}

	cells := Boundary(m, threshold)
	rects := make([]image.Rectangle, 0, len(cells))
	for _, i := range cells {
		r := CellRect(m, i%m.Width, i/m.Width, targetW, targetH)
		if r.Empty() {
			continue
		}
		rects = append(rects, r)
	}
	return rects, nil
}

// Stroke 用颜色 c 填充轮廓矩形
func Stroke(dst draw.Image, rects []image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	b := dst.Bounds()
	for _, r := range rects {
		r = r.Add(b.Min).Intersect(b)
		draw.Draw(dst, r, src, image.Point{}, draw.Src)
	}
}
