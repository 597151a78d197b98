package sam

import (
	"fmt"

	"github.com/getcharzp/go-clickseg"
)

type Label int

const (
	LabelPadding     Label = -1 // 占位点, 无框选时补在最后
	LabelBackground  Label = 0  // 背景/排除
	LabelForeground  Label = 1  // 前景/点击
	LabelBoxTopLeft  Label = 2  // 框选左上
	LabelBoxBotRight Label = 3  // 框选右下
)

// Point 画布坐标系下的提示点
type Point struct {
	X, Y  float64
	Label Label
}

// Prompt 映射到解码器坐标空间后的提示点, 已包含占位点
type Prompt struct {
	Coords []float32 // [x0, y0, x1, y1, ...]
	Labels []float32
}

// Len 提示点个数
func (p Prompt) Len() int {
	return len(p.Labels)
}

// MapClick 将一次前景点击映射为解码器提示
//
// 输出坐标 [x', y', 0, 0], 标签 [1, -1]; x' = x / canvasW * 1024
func MapClick(x, y float64, canvasW, canvasH int) (Prompt, error) {
	return MapPoints([]Point{{X: x, Y: y, Label: LabelForeground}}, canvasW, canvasH)
}

// MapPoints 将多个提示点映射到解码器坐标空间
//
// 没有框选点时在末尾补一个 (0, 0, -1) 占位点
//
// # Params:
//
//	points: 画布坐标系下的提示点
//	canvasW, canvasH: 画布当前尺寸
func MapPoints(points []Point, canvasW, canvasH int) (Prompt, error) {
	if canvasW <= 0 || canvasH <= 0 {
		return Prompt{}, fmt.Errorf("%w: 画布尺寸 %dx%d", clickseg.ErrInvalidCanvasState, canvasW, canvasH)
	}
	if len(points) == 0 {
		return Prompt{}, fmt.Errorf("至少需要一个提示点")
	}

	hasBox := false
	p := Prompt{
		Coords: make([]float32, 0, (len(points)+1)*2),
		Labels: make([]float32, 0, len(points)+1),
	}
	for _, pt := range points {
		x := pt.X / float64(canvasW) * ModelInputSize
		y := pt.Y / float64(canvasH) * ModelInputSize
		p.Coords = append(p.Coords, float32(x), float32(y))
		p.Labels = append(p.Labels, float32(pt.Label))
		if pt.Label == LabelBoxTopLeft || pt.Label == LabelBoxBotRight {
			hasBox = true
		}
	}
	if !hasBox {
		p.Coords = append(p.Coords, 0, 0)
		p.Labels = append(p.Labels, float32(LabelPadding))
	}
	return p, nil
}
