package server

// Response 通用响应
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ImageResult 上传结果
type ImageResult struct {
	MD5     string `json:"md5"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Variant string `json:"variant"`
	Cached  bool   `json:"cached"` // 特征是否来自缓存
}

// ClickRequest 点击请求, 坐标为画布坐标
type ClickRequest struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	CanvasWidth  int     `json:"canvas_width"`
	CanvasHeight int     `json:"canvas_height"`
}

// MaskScore 单个已渲染 mask 的分数
type MaskScore struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
	Area  int     `json:"area"` // 超过阈值的单元数
}

// ClickResult 点击结果
type ClickResult struct {
	Status    string      `json:"status"`
	Best      MaskScore   `json:"best"`
	Masks     []MaskScore `json:"masks"`
	Threshold float32     `json:"threshold"`
	ElapsedMS int64       `json:"elapsed_ms"`
	Frame     string      `json:"frame"` // base64 编码的 PNG
}

// ThresholdRequest 阈值设置请求
type ThresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

// StatusResult 会话状态
type StatusResult struct {
	State     string  `json:"state"`
	Status    string  `json:"status"`
	Busy      bool    `json:"busy"`
	Threshold float32 `json:"threshold"`
	Variant   string  `json:"variant"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}
