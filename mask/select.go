package mask

import (
	"fmt"
	"sort"

	"github.com/getcharzp/go-clickseg"
	"gonum.org/v1/gonum/floats"
)

// Layout 解码输出中 mask 数量、高、宽所在的维度
//
// 不同模型导出的 masks 张量维度顺序不同, 不能假定固定下标
type Layout struct {
	CountAxis  int
	HeightAxis int
	WidthAxis  int
}

// Mask 单个 mask 的 logits, 行优先, 大小 Width*Height
type Mask struct {
	Index  int     // 在候选集中的下标
	Score  float32 // 质量分数 (IoU 预测)
	Width  int
	Height int
	Data   []float32
}

// At 返回 (x, y) 处的 logit
func (m Mask) At(x, y int) float32 {
	return m.Data[y*m.Width+x]
}

func (m Mask) validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: mask 尺寸 %dx%d", clickseg.ErrShapeMismatch, m.Width, m.Height)
	}
	if len(m.Data) != m.Width*m.Height {
		return fmt.Errorf("%w: mask 数据长度 %d 与尺寸 %dx%d 不符",
			clickseg.ErrShapeMismatch, len(m.Data), m.Width, m.Height)
	}
	return nil
}

// Candidates 一次解码得到的候选 mask 集合
type Candidates struct {
	Count  int
	Width  int
	Height int
	Data   []float32 // Count 个 mask 依次拼接
	Scores []float32
}

// NewCandidates 按 layout 解析解码输出
//
// # Params:
//
//	masks: 解码输出的 masks 张量
//	scores: 每个 mask 的质量分数
//	layout: mask 数量/高/宽所在的维度
func NewCandidates(masks, scores clickseg.Tensor, layout Layout) (*Candidates, error) {
	if err := masks.Validate(); err != nil {
		return nil, err
	}
	rank := len(masks.Shape)
	axes := []int{layout.CountAxis, layout.HeightAxis, layout.WidthAxis}
	for _, a := range axes {
		if a < 0 || a >= rank {
			return nil, fmt.Errorf("%w: masks 形状 %v 没有第 %d 维", clickseg.ErrShapeMismatch, masks.Shape, a)
		}
	}
	if layout.CountAxis == layout.HeightAxis || layout.CountAxis == layout.WidthAxis || layout.HeightAxis == layout.WidthAxis {
		return nil, fmt.Errorf("%w: layout 维度重复 %+v", clickseg.ErrShapeMismatch, layout)
	}

	// 除 count/h/w 外的维度必须为 1, 才能按 mask 依次拼接的方式切片
	for i, d := range masks.Shape {
		if i == layout.CountAxis || i == layout.HeightAxis || i == layout.WidthAxis {
			continue
		}
		if d != 1 {
			return nil, fmt.Errorf("%w: masks 形状 %v 第 %d 维应为 1", clickseg.ErrShapeMismatch, masks.Shape, i)
		}
	}
	if layout.HeightAxis > layout.WidthAxis || layout.CountAxis > layout.HeightAxis {
		return nil, fmt.Errorf("%w: 仅支持 count, h, w 依次排列的布局 %+v", clickseg.ErrShapeMismatch, layout)
	}

	c := &Candidates{
		Count:  masks.Dim(layout.CountAxis),
		Height: masks.Dim(layout.HeightAxis),
		Width:  masks.Dim(layout.WidthAxis),
		Data:   masks.Data,
		Scores: scores.Data,
	}
	if c.Count == 0 || c.Width == 0 || c.Height == 0 {
		return nil, fmt.Errorf("%w: masks 形状 %v 为空", clickseg.ErrShapeMismatch, masks.Shape)
	}
	if len(c.Scores) != c.Count {
		return nil, fmt.Errorf("%w: %d 个 mask 对应 %d 个分数", clickseg.ErrShapeMismatch, c.Count, len(c.Scores))
	}
	return c, nil
}

// Extract 复制第 index 个 mask
func (c *Candidates) Extract(index int) Mask {
	n := c.Width * c.Height
	start := index * n
	data := make([]float32, n)
	copy(data, c.Data[start:start+n])
	return Mask{
		Index:  index,
		Score:  c.Scores[index],
		Width:  c.Width,
		Height: c.Height,
		Data:   data,
	}
}

// BestIndex 分数最大的 mask 下标, 并列时取第一个
func (c *Candidates) BestIndex() int {
	s := make([]float64, len(c.Scores))
	for i, v := range c.Scores {
		s[i] = float64(v)
	}
	return floats.MaxIdx(s)
}

// Best 返回分数最高的 mask
func (c *Candidates) Best() Mask {
	return c.Extract(c.BestIndex())
}

// Ranked 按分数从高到低返回全部 mask, 分数相同保持原顺序
func (c *Candidates) Ranked() []Mask {
	order := make([]int, c.Count)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return c.Scores[order[i]] > c.Scores[order[j]]
	})

	out := make([]Mask, 0, c.Count)
	for _, idx := range order {
		out = append(out, c.Extract(idx))
	}
	return out
}
