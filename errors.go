package clickseg

import "errors"

// 单次点击内可恢复的错误类型, 使用 errors.Is 判断
var (
	// ErrInvalidCanvasState 画布或目标尺寸为 0, 或尚未加载图片
	ErrInvalidCanvasState = errors.New("invalid canvas state")
	// ErrMissingEmbedding 图片特征缺少当前模型需要的张量
	ErrMissingEmbedding = errors.New("missing embedding")
	// ErrEngineFailure 推理引擎返回的错误
	ErrEngineFailure = errors.New("engine failure")
	// ErrShapeMismatch 解码输出的形状与预期的 mask/score 布局不一致
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrBusy 上一次点击的解码仍在进行
	ErrBusy = errors.New("decode in flight")
	// ErrSuperseded 解码期间图片被替换, 结果已丢弃
	ErrSuperseded = errors.New("image replaced during decode")
	// ErrInvalidThreshold 阈值超出 [0, 20]
	ErrInvalidThreshold = errors.New("invalid threshold")
)
