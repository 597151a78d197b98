package sam

import (
	"fmt"
	"strings"

	"github.com/getcharzp/go-clickseg"
	"github.com/getcharzp/go-clickseg/mask"
)

// Variant 解码器模型类型, 每种类型的输入输出约定在 contracts 中声明一次
type Variant int

const (
	// SingleEmbedding 单特征解码器 (MobileSAM), 需要 orig_im_size
	SingleEmbedding Variant = iota
	// MultiFeature 多尺度特征解码器 (SAM2 hiera), 需要 high_res_feats_0/1, 不需要 orig_im_size
	MultiFeature
)

func (v Variant) String() string {
	switch v {
	case SingleEmbedding:
		return "mobilesam"
	case MultiFeature:
		return "sam2"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant 解析配置中的模型类型名称
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobilesam", "single", "single_embedding":
		return SingleEmbedding, nil
	case "sam2", "multi", "multi_feature":
		return MultiFeature, nil
	default:
		return 0, fmt.Errorf("未知的模型类型 %q (可选 mobilesam, sam2)", s)
	}
}

// 张量名称
const (
	ImageEmbed     = "image_embed"
	HighResFeats0  = "high_res_feats_0"
	HighResFeats1  = "high_res_feats_1"
	PointCoords    = "point_coords"
	PointLabels    = "point_labels"
	MaskInput      = "mask_input"
	HasMaskInput   = "has_mask_input"
	OrigImSize     = "orig_im_size"
	MasksOutput    = "masks"
	IoUPredictions = "iou_predictions"
)

// PixelLayout 编码器输入的像素排布
type PixelLayout int

const (
	// LayoutHWC [H, W, 3], 取值 0-255
	LayoutHWC PixelLayout = iota
	// LayoutNCHW [1, 3, H, W], 按 ImageNet 均值方差归一化
	LayoutNCHW
)

// 均值和方差常量
const (
	MeanR = 0.485
	MeanG = 0.456
	MeanB = 0.406

	StdR = 0.229
	StdG = 0.224
	StdB = 0.225
)

const (
	// ModelInputSize 解码器坐标空间的边长
	ModelInputSize = 1024
	// MaskInputSize mask_input 提示的边长
	MaskInputSize = 256
	// DefaultThreshold 默认 logit 阈值
	DefaultThreshold = 2.0
	// MaxThreshold 阈值上限
	MaxThreshold = 20.0
)

// Contract 某一模型类型的完整张量约定
//
// 特征没有单独的可选列表: high_res_feats_0/1 只出现在 MultiFeature 的 Embeddings 中,
// orig_im_size 由 WantsOrigImSize 控制。Embeddings 未列出的特征在构建请求时被忽略
type Contract struct {
	Variant Variant

	// Embeddings 解码器必需的图片特征, 缺失任意一个都无法构建请求
	Embeddings []string
	// WantsOrigImSize 解码器是否需要 orig_im_size 输入
	WantsOrigImSize bool

	// 编码器
	EncoderInput   string
	EncoderLayout  PixelLayout
	EncoderOutputs map[string]string // 编码器输出名 -> 特征名

	// 解码器输出
	MasksOutput  string
	ScoresOutput string
	Layout       mask.Layout
}

var contracts = map[Variant]Contract{
	SingleEmbedding: {
		Variant:         SingleEmbedding,
		Embeddings:      []string{ImageEmbed},
		WantsOrigImSize: true,
		EncoderInput:    "input_image",
		EncoderLayout:   LayoutHWC,
		EncoderOutputs:  map[string]string{"image_embeddings": ImageEmbed},
		MasksOutput:     MasksOutput,
		ScoresOutput:    IoUPredictions,
		Layout:          mask.Layout{CountAxis: 1, HeightAxis: 2, WidthAxis: 3},
	},
	MultiFeature: {
		Variant:         MultiFeature,
		Embeddings:      []string{ImageEmbed, HighResFeats0, HighResFeats1},
		WantsOrigImSize: false,
		EncoderInput:    "image",
		EncoderLayout:   LayoutNCHW,
		EncoderOutputs: map[string]string{
			"image_embed":      ImageEmbed,
			"high_res_feats_0": HighResFeats0,
			"high_res_feats_1": HighResFeats1,
		},
		MasksOutput:  MasksOutput,
		ScoresOutput: IoUPredictions,
		Layout:       mask.Layout{CountAxis: 0, HeightAxis: 2, WidthAxis: 3},
	},
}

// ContractFor 返回模型类型的张量约定
func ContractFor(v Variant) (Contract, error) {
	c, ok := contracts[v]
	if !ok {
		return Contract{}, fmt.Errorf("未知的模型类型 %v", v)
	}
	return c, nil
}

// DecoderInputs 解码器输入名称, 也是 Run 时传入张量的顺序
func (c Contract) DecoderInputs() []string {
	names := append([]string(nil), c.Embeddings...)
	names = append(names, PointCoords, PointLabels, MaskInput, HasMaskInput)
	if c.WantsOrigImSize {
		names = append(names, OrigImSize)
	}
	return names
}

// DecoderOutputs 解码器输出名称
func (c Contract) DecoderOutputs() []string {
	return []string{c.MasksOutput, c.ScoresOutput}
}

// EncoderOutputNames 编码器输出名称, 按特征名排序保证顺序稳定
func (c Contract) EncoderOutputNames() []string {
	names := make([]string, 0, len(c.EncoderOutputs))
	for _, emb := range c.Embeddings {
		for out, name := range c.EncoderOutputs {
			if name == emb {
				names = append(names, out)
			}
		}
	}
	return names
}

// Config 配置项
type Config struct {
	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	EncodeModelPath    string // 图片特征提取模型
	DecodeModelPath    string // Mask解码模型
	Variant            Variant

	// 可选参数
	MaskLayout *mask.Layout // (可选) 覆盖 masks 输出的维度布局, nil 使用模型类型的默认值
	UseCuda    bool         // (可选) 是否启用 CUDA
	NumThreads int          // (可选) ONNX 线程数, 默认由CPU核心数决定
}

// DefaultConfig 返回 SAM2 默认配置
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: clickseg.DefaultLibraryPath(),
		EncodeModelPath:    "./sam_weights/sam2_hiera_small.encoder.onnx",
		DecodeModelPath:    "./sam_weights/sam2_hiera_small.decoder.onnx",
		Variant:            MultiFeature,
	}
}

// DefaultMobileSAMConfig 返回 MobileSAM 默认配置
func DefaultMobileSAMConfig() Config {
	cfg := DefaultConfig()
	cfg.EncodeModelPath = "./sam_weights/mobilesam.encoder.onnx"
	cfg.DecodeModelPath = "./sam_weights/mobilesam.decoder.quant.onnx"
	cfg.Variant = SingleEmbedding
	return cfg
}

// Contract 返回应用了配置覆盖项的张量约定
func (cfg Config) Contract() (Contract, error) {
	c, err := ContractFor(cfg.Variant)
	if err != nil {
		return Contract{}, err
	}
	if cfg.MaskLayout != nil {
		c.Layout = *cfg.MaskLayout
	}
	return c, nil
}
