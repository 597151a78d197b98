package session

import (
	"fmt"
	"image"
	"image/color"

	"github.com/getcharzp/go-clickseg"
	"github.com/getcharzp/go-clickseg/mask"
)

// render 从干净底图重新绘制一帧: 叠加 mask, 描边, 点击标记, 分数
//
// 每个 mask 先在副本上着色再与帧混合, 着色和混合是两次独立的遍历
func (s *Session) render(base *image.RGBA, cands *mask.Candidates, overlay color.RGBA, threshold float32, mx, my int) (*Result, error) {
	var (
		masks  []mask.Mask
		colors []color.RGBA
	)
	switch s.opts.Mode {
	case ModeAll:
		masks = cands.Ranked()
		colors = mask.Palette(len(masks))
	default:
		masks = []mask.Mask{cands.Best()}
		colors = []color.RGBA{overlay}
	}

	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	frame := mask.Clone(base)

	// 分数低的先画, 最佳 mask 在最上层
	for i := len(masks) - 1; i >= 0; i-- {
		painted := mask.Clone(frame)
		if err := mask.Paint(painted, masks[i], colors[i], threshold); err != nil {
			return nil, err
		}
		if err := mask.Blend(frame, painted, s.opts.Alpha); err != nil {
			return nil, err
		}
	}
	// 透明的轮廓颜色表示不描边
	for i := len(masks) - 1; i >= 0 && s.opts.ContourColor.A > 0; i-- {
		rects, err := mask.Outline(masks[i], threshold, w, h)
		if err != nil {
			return nil, err
		}
		mask.Stroke(frame, rects, s.opts.ContourColor)
	}

	if s.opts.MarkerSize > 0 {
		clickseg.DrawMarker(frame, mx, my, s.opts.MarkerSize, s.opts.MarkerColor)
	}
	if s.opts.Annotator != nil {
		s.opts.Annotator.Label(frame, fmt.Sprintf("score %.3f", masks[0].Score), 4, 4, color.White)
	}

	binary, err := mask.Binary(masks[0], threshold, w, h)
	if err != nil {
		return nil, err
	}
	return &Result{
		Frame:     frame,
		Masks:     masks,
		Binary:    binary,
		Threshold: threshold,
	}, nil
}
