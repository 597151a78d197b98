package sam

import (
	"fmt"
	"strings"

	"github.com/getcharzp/go-clickseg"
)

// Bundle 一张图片的全部特征张量, 上传新图片时整体替换
type Bundle map[string]clickseg.Tensor

// Clone 深拷贝
func (b Bundle) Clone() Bundle {
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = v.Clone()
	}
	return out
}

// Request 一次解码调用的全部输入张量, 构建后不再修改
type Request map[string]clickseg.Tensor

// Missing 返回 bundle 中缺少的 contract 必需特征
func (c Contract) Missing(bundle Bundle) []string {
	var missing []string
	for _, name := range c.Embeddings {
		if _, ok := bundle[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// BuildRequest 构建一次解码调用的输入
//
// 特征张量按原形状复制; mask_input 为全零 [1,1,256,256], has_mask_input 为 [0];
// contract 需要时附带 orig_im_size = [origH, origW]。出错时不返回任何部分结果
//
// # Params:
//
//	c: 模型类型约定
//	bundle: 图片特征
//	prompt: 已映射的提示点
//	origH, origW: 原图尺寸
func BuildRequest(c Contract, bundle Bundle, prompt Prompt, origH, origW int) (Request, error) {
	if missing := c.Missing(bundle); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s 需要 %s", clickseg.ErrMissingEmbedding, c.Variant, strings.Join(missing, ", "))
	}
	if origH <= 0 || origW <= 0 {
		return nil, fmt.Errorf("%w: 原图尺寸 %dx%d", clickseg.ErrInvalidCanvasState, origW, origH)
	}
	n := prompt.Len()
	if n == 0 || len(prompt.Coords) != 2*n {
		return nil, fmt.Errorf("%w: %d 个坐标对应 %d 个标签", clickseg.ErrShapeMismatch, len(prompt.Coords), n)
	}

	req := make(Request, len(c.Embeddings)+5)
	for _, name := range c.Embeddings {
		t := bundle[name]
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("特征 %s: %w", name, err)
		}
		req[name] = t.Clone()
	}

	req[PointCoords] = clickseg.Tensor{
		Data:  append([]float32(nil), prompt.Coords...),
		Shape: []int64{1, int64(n), 2},
	}
	req[PointLabels] = clickseg.Tensor{
		Data:  append([]float32(nil), prompt.Labels...),
		Shape: []int64{1, int64(n)},
	}
	req[MaskInput] = clickseg.Zeros(1, 1, MaskInputSize, MaskInputSize)
	req[HasMaskInput] = clickseg.Zeros(1)
	if c.WantsOrigImSize {
		req[OrigImSize] = clickseg.Tensor{
			Data:  []float32{float32(origH), float32(origW)},
			Shape: []int64{2},
		}
	}
	return req, nil
}
