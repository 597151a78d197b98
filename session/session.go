package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getcharzp/go-clickseg"
	"github.com/getcharzp/go-clickseg/mask"
	"github.com/getcharzp/go-clickseg/sam"
	"go.uber.org/zap"
)

// InferenceEngine 解码推理, 输入输出均为命名张量
type InferenceEngine interface {
	Run(ctx context.Context, inputs map[string]clickseg.Tensor) (map[string]clickseg.Tensor, error)
}

// Encoder 图片特征提取
type Encoder interface {
	Encode(ctx context.Context, img image.Image) (sam.Bundle, error)
}

// State 单次点击的处理状态
type State int

const (
	Idle State = iota
	Decoding
	Rendered
	Failed
)

func (s State) String() string {
	switch s {
	case Decoding:
		return "decoding"
	case Rendered:
		return "rendered"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Result 一次点击的渲染结果
type Result struct {
	Frame     *image.RGBA
	Masks     []mask.Mask // 已渲染的 mask, 第一个分数最高
	Binary    *image.Gray // 最佳 mask 在原图尺寸下的二值图
	Threshold float32
	Elapsed   time.Duration
}

// Best 分数最高的 mask
func (r *Result) Best() mask.Mask {
	return r.Masks[0]
}

const loadedStatus = "Image loaded. Click on the image to generate a mask."

// Session 单张图片的交互分割会话
//
// 同一时刻只处理一次点击, 解码进行中的点击直接返回 ErrBusy
type Session struct {
	engine InferenceEngine
	opts   Options
	logger *zap.Logger
	store  Store

	inFlight atomic.Bool

	mu        sync.Mutex
	state     State
	status    string
	threshold float32
	overlay   color.RGBA
	frame     *image.RGBA
	last      *Result
}

// New 创建会话
func New(engine InferenceEngine, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MarkerSize == 0 {
		opts.MarkerSize = 5
	}
	if ValidThreshold(float64(opts.Threshold)) != nil {
		opts.Threshold = sam.DefaultThreshold
	}
	return &Session{
		engine:    engine,
		opts:      opts,
		logger:    opts.Logger,
		threshold: opts.Threshold,
		overlay:   opts.OverlayColor,
		status:    "Upload an image to start.",
	}
}

// Load 替换当前图片和特征, 帧重置为干净底图
//
// 解码进行中调用 Load 时, 该次解码的结果会被丢弃
func (s *Session) Load(img image.Image, bundle sam.Bundle) error {
	if missing := s.opts.Contract.Missing(bundle); len(missing) > 0 {
		return fmt.Errorf("%w: %s 需要 %v", clickseg.ErrMissingEmbedding, s.opts.Contract.Variant, missing)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: 图片尺寸 %dx%d", clickseg.ErrInvalidCanvasState, b.Dx(), b.Dy())
	}

	gen := s.store.Set(img, bundle)
	base, _, _, _ := s.store.Snapshot()

	overlay := s.opts.OverlayColor
	if s.opts.AutoColor {
		overlay = mask.ContrastColor(base)
	}

	s.mu.Lock()
	s.frame = mask.Clone(base)
	s.last = nil
	s.overlay = overlay
	s.mu.Unlock()

	s.logger.Info("image loaded",
		zap.Int("width", base.Bounds().Dx()),
		zap.Int("height", base.Bounds().Dy()),
		zap.Uint64("generation", gen))
	s.setState(Idle, loadedStatus)
	return nil
}

// SetThreshold 设置 logit 阈值, 范围 [0, 20]
//
// 点击在推理返回后才读取阈值, 因此解码期间的修改对正在进行的点击同样生效,
// 返回结果的 Threshold 字段记录实际使用的值
func (s *Session) SetThreshold(v float64) error {
	if err := ValidThreshold(v); err != nil {
		return err
	}
	s.mu.Lock()
	s.threshold = float32(v)
	s.mu.Unlock()
	s.logger.Debug("threshold changed", zap.Float64("threshold", v))
	return nil
}

// Threshold 当前阈值
func (s *Session) Threshold() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status 面向用户的状态描述
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Size 当前图片尺寸, 未加载时为 0
func (s *Session) Size() (w, h int) {
	return s.store.Size()
}

// Busy 是否有解码正在进行
func (s *Session) Busy() bool {
	return s.inFlight.Load()
}

// Frame 当前帧的副本, 未加载图片时返回 nil
func (s *Session) Frame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil
	}
	return mask.Clone(s.frame)
}

// Last 最近一次成功的结果
func (s *Session) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Click 处理一次前景点击
//
// 流程: 坐标映射 -> 构建请求 -> 推理 -> 选择 mask -> 渲染。任何一步失败都会把帧恢复为干净底图
//
// # Params:
//
//	x, y: 画布坐标
//	canvasW, canvasH: 画布当前尺寸
func (s *Session) Click(ctx context.Context, x, y float64, canvasW, canvasH int) (*Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("click rejected, decode in flight", zap.Float64("x", x), zap.Float64("y", y))
		return nil, clickseg.ErrBusy
	}
	defer s.inFlight.Store(false)

	if w, _ := s.store.Size(); w == 0 {
		return nil, s.fail(nil, fmt.Errorf("%w: 尚未加载图片", clickseg.ErrInvalidCanvasState))
	}
	// 先切换状态再取快照, 之后的 Load 总能覆盖 Decoding 状态
	s.setState(Decoding, fmt.Sprintf("Clicked on (%g, %g). Generating mask...", x, y))
	base, bundle, gen, ok := s.store.Snapshot()
	if !ok {
		return nil, s.fail(nil, fmt.Errorf("%w: 尚未加载图片", clickseg.ErrInvalidCanvasState))
	}
	start := time.Now()

	prompt, err := sam.MapClick(x, y, canvasW, canvasH)
	if err != nil {
		return nil, s.fail(base, err)
	}
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	req, err := sam.BuildRequest(s.opts.Contract, bundle, prompt, h, w)
	if err != nil {
		return nil, s.fail(base, err)
	}

	out, err := s.engine.Run(ctx, req)
	if err != nil {
		if !errors.Is(err, clickseg.ErrEngineFailure) {
			err = fmt.Errorf("%w: %w", clickseg.ErrEngineFailure, err)
		}
		return nil, s.fail(base, err)
	}
	if s.store.Generation() != gen {
		return nil, s.supersede(gen)
	}

	cands, err := s.candidates(out)
	if err != nil {
		return nil, s.fail(base, err)
	}

	// 阈值在推理返回后读取, 推理期间的修改对本次点击生效
	threshold := s.Threshold()
	s.mu.Lock()
	overlay := s.overlay
	s.mu.Unlock()

	mx := int(x * float64(w) / float64(canvasW))
	my := int(y * float64(h) / float64(canvasH))
	res, err := s.render(base, cands, overlay, threshold, mx, my)
	if err != nil {
		return nil, s.fail(base, err)
	}
	res.Elapsed = time.Since(start)

	s.mu.Lock()
	if s.store.Generation() != gen {
		s.mu.Unlock()
		return nil, s.supersede(gen)
	}
	s.frame = res.Frame
	s.last = res
	s.mu.Unlock()

	best := res.Best()
	s.logger.Info("mask generated",
		zap.Int("mask", best.Index),
		zap.Float32("score", best.Score),
		zap.Float32("threshold", threshold),
		zap.Int("area", mask.Area(best, threshold)),
		zap.Duration("elapsed", res.Elapsed))
	s.setState(Rendered, "Mask generated. Click on the image to generate a new mask.")

	return res, nil
}

func (s *Session) candidates(out map[string]clickseg.Tensor) (*mask.Candidates, error) {
	c := s.opts.Contract
	masks, ok := out[c.MasksOutput]
	if !ok {
		return nil, fmt.Errorf("%w: 解码输出缺少 %s", clickseg.ErrShapeMismatch, c.MasksOutput)
	}
	scores, ok := out[c.ScoresOutput]
	if !ok {
		return nil, fmt.Errorf("%w: 解码输出缺少 %s", clickseg.ErrShapeMismatch, c.ScoresOutput)
	}
	return mask.NewCandidates(masks, scores, c.Layout)
}

// supersede 丢弃旧图片的解码结果; 状态仍停留在 Decoding 时回到 Idle
func (s *Session) supersede(gen uint64) error {
	s.logger.Info("decode result discarded, image replaced", zap.Uint64("generation", gen))
	s.mu.Lock()
	stale := s.state == Decoding
	s.mu.Unlock()
	if stale {
		s.setState(Idle, loadedStatus)
	}
	return clickseg.ErrSuperseded
}

// fail 恢复干净底图并记录错误
func (s *Session) fail(base *image.RGBA, err error) error {
	s.mu.Lock()
	if base != nil {
		s.frame = mask.Clone(base)
	}
	s.mu.Unlock()

	s.logger.Error("click failed", zap.Error(err))
	s.setState(Failed, "Error: "+err.Error())
	return err
}

func (s *Session) setState(state State, status string) {
	s.mu.Lock()
	s.state = state
	s.status = status
	s.mu.Unlock()

	if s.opts.OnStatus != nil {
		s.opts.OnStatus(state, status)
	}
}
