package session

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/getcharzp/go-clickseg"
	"github.com/getcharzp/go-clickseg/sam"
	"go.uber.org/zap"
)

// Mode 渲染模式
type Mode int

const (
	// ModeBest 只渲染分数最高的 mask
	ModeBest Mode = iota
	// ModeAll 按分数顺序渲染全部候选 mask
	ModeAll
)

func (m Mode) String() string {
	if m == ModeAll {
		return "all"
	}
	return "best"
}

// ParseMode 解析渲染模式
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best":
		return ModeBest, nil
	case "all":
		return ModeAll, nil
	default:
		return ModeBest, fmt.Errorf("未知的渲染模式 %q (可选 best, all)", s)
	}
}

// Options 会话参数
type Options struct {
	Contract sam.Contract

	Threshold    float32    // 初始阈值, 默认 2
	Alpha        float64    // 叠加混合系数, 默认 0.5
	OverlayColor color.RGBA // 叠加颜色, 默认绿色
	AutoColor    bool       // 使用图片主色的互补色作为叠加颜色
	ContourColor color.RGBA // 轮廓颜色, 默认红色; Alpha 为 0 时不描边
	MarkerColor  color.RGBA // 点击标记颜色, 默认绿色
	MarkerSize   int        // 点击标记边长, 0 使用默认值 5, 负数不绘制
	Mode         Mode

	Annotator *clickseg.Annotator // (可选) 在帧上绘制分数
	OnStatus  func(State, string) // (可选) 状态变化回调
	Logger    *zap.Logger         // (可选) 默认不输出日志
}

// DefaultOptions 默认参数
func DefaultOptions(contract sam.Contract) Options {
	return Options{
		Contract:     contract,
		Threshold:    sam.DefaultThreshold,
		Alpha:        0.5,
		OverlayColor: color.RGBA{G: 255, A: 255},
		ContourColor: color.RGBA{R: 255, A: 255},
		MarkerColor:  color.RGBA{G: 255, A: 255},
		MarkerSize:   5,
	}
}

// ValidThreshold 校验阈值在 [0, 20] 内
func ValidThreshold(v float64) error {
	if !(v >= 0 && v <= sam.MaxThreshold) {
		return fmt.Errorf("%w: %v 不在 [0, %v] 内", clickseg.ErrInvalidThreshold, v, sam.MaxThreshold)
	}
	return nil
}
