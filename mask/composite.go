package mask

import (
	"fmt"
	"image"
	"math"

	"github.com/getcharzp/go-clickseg"
)

// Blend 将 overlay 按 alpha 就地混合进 base
//
// 每个像素 R,G,B: out = base + alpha*(overlay-base), 向下取整; base 的 Alpha 通道保持不变。
// alpha 会被截断到 [0, 1]
func Blend(base, overlay *image.RGBA, alpha float64) error {
	bb, ob := base.Bounds(), overlay.Bounds()
	if bb.Dx() != ob.Dx() || bb.Dy() != ob.Dy() {
		return fmt.Errorf("%w: 混合尺寸不一致 %dx%d vs %dx%d",
			clickseg.ErrShapeMismatch, bb.Dx(), bb.Dy(), ob.Dx(), ob.Dy())
	}
	alpha = min(max(alpha, 0), 1)
	if alpha == 0 {
		return nil
	}

	w, h := bb.Dx(), bb.Dy()
	for y := 0; y < h; y++ {
		bi := base.PixOffset(bb.Min.X, bb.Min.Y+y)
		oi := overlay.PixOffset(ob.Min.X, ob.Min.Y+y)
		for x := 0; x < w; x++ {
			for ch := 0; ch < 3; ch++ {
				base.Pix[bi+ch] = mix(base.Pix[bi+ch], overlay.Pix[oi+ch], alpha)
			}
			bi += 4
			oi += 4
		}
	}
	return nil
}

func mix(b, o uint8, alpha float64) uint8 {
	if b == o {
		return b
	}
	v := float64(b) + alpha*(float64(o)-float64(b))
	return uint8(min(max(math.Floor(v), 0), 255))
}
