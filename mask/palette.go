package mask

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
)

// ParseColor 解析 "#rrggbb" 形式的颜色
func ParseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("解析颜色 %q 失败: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Palette 返回 n 个色相均匀分布的高饱和度颜色, 从绿色开始
func Palette(n int) []color.RGBA {
	out := make([]color.RGBA, 0, n)
	for i := 0; i < n; i++ {
		h := math.Mod(120+float64(i)*360/float64(n), 360)
		r, g, b := colorful.Hsv(h, 1, 1).RGB255()
		out = append(out, color.RGBA{R: r, G: g, B: b, A: 255})
	}
	return out
}

// ContrastColor 取图片主色的互补色相作为叠加颜色
func ContrastColor(img image.Image) color.RGBA {
	cands := dominantcolor.FindWeight(img, 4)
	if len(cands) == 0 {
		return color.RGBA{G: 255, A: 255}
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Weight > best.Weight {
			best = c
		}
	}

	col, _ := colorful.MakeColor(best.RGBA)
	h, s, v := col.Clamped().Hsv()
	// 灰度主色没有色相, 直接用绿色
	if s < 0.1 {
		return color.RGBA{G: 255, A: 255}
	}
	r, g, b := colorful.Hsv(math.Mod(h+180, 360), max(s, 0.8), max(v, 0.8)).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
