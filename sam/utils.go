package sam

import (
	"image"

	"github.com/getcharzp/go-clickseg"
	"github.com/up-zero/gotool/imageutil"
)

// preprocess 将图片拉伸到 size×size 并按 layout 排布成编码器输入
//
// 拉伸而不是等比缩放, 与点击坐标 x/width*1024 的映射保持一致
func preprocess(img image.Image, size int, layout PixelLayout) clickseg.Tensor {
	resized := imageutil.Resize(img, size, size)
	if layout == LayoutHWC {
		return clickseg.Tensor{
			Data:  toHWC(resized, size),
			Shape: []int64{int64(size), int64(size), 3},
		}
	}
	return clickseg.Tensor{
		Data:  normalizeCHW(resized, size),
		Shape: []int64{1, 3, int64(size), int64(size)},
	}
}

// toHWC 按 [H, W, 3] 排布, 取值 0-255
func toHWC(src image.Image, size int) []float32 {
	bounds := src.Bounds()
	w, h := min(bounds.Dx(), size), min(bounds.Dy(), size)
	data := make([]float32, 3*size*size)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := (y*size + x) * 3
			data[idx] = float32(r >> 8)
			data[idx+1] = float32(g >> 8)
			data[idx+2] = float32(b >> 8)
		}
	}
	return data
}

// normalizeCHW 按 [3, H, W] 排布并归一化
func normalizeCHW(src image.Image, size int) []float32 {
	bounds := src.Bounds()
	w, h := min(bounds.Dx(), size), min(bounds.Dy(), size)
	plane := size * size
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 0-65535
			rf := (float32(r)/65535.0 - MeanR) / StdR
			gf := (float32(g)/65535.0 - MeanG) / StdG
			bf := (float32(b)/65535.0 - MeanB) / StdB

			idx := y*size + x
			data[idx] = rf
			data[plane+idx] = gf
			data[2*plane+idx] = bf
		}
	}
	return data
}
