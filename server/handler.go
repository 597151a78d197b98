package server

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/getcharzp/go-clickseg"
	"github.com/getcharzp/go-clickseg/mask"
	"github.com/getcharzp/go-clickseg/sam"
	"github.com/getcharzp/go-clickseg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	cfg     *Config
	session *session.Session
	encoder session.Encoder
	cache   sam.Cache
	variant sam.Variant
}

func NewHandler(cfg *Config, sess *session.Session, encoder session.Encoder, cache sam.Cache, variant sam.Variant) *Handler {
	return &Handler{
		cfg:     cfg,
		session: sess,
		encoder: encoder,
		cache:   cache,
		variant: variant,
	}
}

// UploadImage 上传图片, 计算 (或从缓存读取) 特征后重置会话
func (h *Handler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		requestLogger(c).Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
		})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "读取文件失败", Error: err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "读取文件失败", Error: err.Error()})
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: "无法解码图片", Error: err.Error()})
		return
	}
	sum := bytesMD5(data)

	ctx := c.Request.Context()
	bundle, cached, err := h.embedding(ctx, requestLogger(c), sum, img)
	if err != nil {
		h.fail(c, "提取图片特征失败", err)
		return
	}
	if err := h.session.Load(img, bundle); err != nil {
		h.fail(c, "加载图片失败", err)
		return
	}

	b := img.Bounds()
	requestLogger(c).Info("image uploaded",
		zap.String("filename", file.Filename),
		zap.String("md5", sum),
		zap.Int64("size", file.Size),
		zap.Bool("cached", cached))

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: h.session.Status(),
		Data: ImageResult{
			MD5:     sum,
			Width:   b.Dx(),
			Height:  b.Dy(),
			Variant: h.variant.String(),
			Cached:  cached,
		},
	})
}

// embedding 先查缓存, 未命中时调用编码器并写回缓存
func (h *Handler) embedding(ctx context.Context, logger *zap.Logger, sum string, img image.Image) (sam.Bundle, bool, error) {
	key := sam.CacheKey(sum, h.variant)
	if h.cache != nil {
		bundle, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("failed to get cache", zap.String("cache_key", key), zap.Error(err))
		}
		if ok {
			logger.Info("cache hit", zap.String("cache_key", key))
			return bundle, true, nil
		}
	}

	bundle, err := h.encoder.Encode(ctx, img)
	if err != nil {
		return nil, false, err
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, bundle); err != nil {
			logger.Warn("failed to set cache", zap.String("cache_key", key), zap.Error(err))
		}
	}
	return bundle, false, nil
}

// Click 处理一次画布点击
func (h *Handler) Click(c *gin.Context) {
	var req ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: "请求参数错误", Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	if h.cfg.Server.DecodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Server.DecodeTimeout)
		defer cancel()
	}

	res, err := h.session.Click(ctx, req.X, req.Y, req.CanvasWidth, req.CanvasHeight)
	if err != nil {
		h.fail(c, h.session.Status(), err)
		return
	}

	frame, err := encodePNG(res.Frame)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "编码帧失败", Error: err.Error()})
		return
	}

	scores := make([]MaskScore, 0, len(res.Masks))
	for _, m := range res.Masks {
		scores = append(scores, MaskScore{Index: m.Index, Score: m.Score, Area: mask.Area(m, res.Threshold)})
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: h.session.Status(),
		Data: ClickResult{
			Status:    h.session.Status(),
			Best:      scores[0],
			Masks:     scores,
			Threshold: res.Threshold,
			ElapsedMS: res.Elapsed.Milliseconds(),
			Frame:     base64.StdEncoding.EncodeToString(frame),
		},
	})
}

// Frame 返回当前帧 PNG
func (h *Handler) Frame(c *gin.Context) {
	frame := h.session.Frame()
	if frame == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: "尚未上传图片"})
		return
	}
	h.writePNG(c, frame)
}

// Mask 返回最近一次点击的二值 mask PNG
func (h *Handler) Mask(c *gin.Context) {
	last := h.session.Last()
	if last == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: "尚未生成 mask"})
		return
	}
	h.writePNG(c, last.Binary)
}

// GetThreshold 返回当前阈值
func (h *Handler) GetThreshold(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "查询成功",
		Data:    gin.H{"threshold": h.session.Threshold()},
	})
}

// SetThreshold 设置阈值, 对之后的点击生效
func (h *Handler) SetThreshold(c *gin.Context) {
	var req ThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Threshold == nil {
		msg := "缺少 threshold"
		if err != nil {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: "请求参数错误", Error: msg})
		return
	}
	if err := h.session.SetThreshold(*req.Threshold); err != nil {
		h.fail(c, "阈值无效", err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "设置成功",
		Data:    gin.H{"threshold": h.session.Threshold()},
	})
}

// Status 返回会话状态
func (h *Handler) Status(c *gin.Context) {
	w, hh := h.session.Size()
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "查询成功",
		Data: StatusResult{
			State:     h.session.State().String(),
			Status:    h.session.Status(),
			Busy:      h.session.Busy(),
			Threshold: h.session.Threshold(),
			Variant:   h.variant.String(),
			Width:     w,
			Height:    hh,
		},
	})
}

func (h *Handler) fail(c *gin.Context, message string, err error) {
	code := statusCode(err)
	logger := requestLogger(c).With(zap.Int("status", code))
	if code >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err))
	} else {
		logger.Warn(message, zap.Error(err))
	}
	c.JSON(code, ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

func (h *Handler) writePNG(c *gin.Context, img image.Image) {
	data, err := encodePNG(img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "编码图片失败", Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (h *Handler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// statusCode 错误类型到 HTTP 状态码
func statusCode(err error) int {
	switch {
	case errors.Is(err, clickseg.ErrInvalidCanvasState), errors.Is(err, clickseg.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, clickseg.ErrBusy), errors.Is(err, clickseg.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, clickseg.ErrMissingEmbedding), errors.Is(err, clickseg.ErrShapeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, clickseg.ErrEngineFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// bytesMD5 计算字节数组MD5
func bytesMD5(data []byte) string {
	hash := md5.New()
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}
