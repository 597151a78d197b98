package sam

import (
	"context"
	"fmt"
	"image"

	"github.com/getcharzp/go-clickseg"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Engine 持有编码器和解码器的 ONNX Session
//
// Encode 生成图片特征, Run 执行一次解码, 二者都可并发调用
type Engine struct {
	encoderSession *ort.DynamicAdvancedSession
	decoderSession *ort.DynamicAdvancedSession
	onnx           *clickseg.OnnxConfig
	contract       Contract
	config         Config
	logger         *zap.Logger
}

// NewEngine 初始化引擎, logger 为 nil 时不输出日志
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	contract, err := cfg.Contract()
	if err != nil {
		return nil, err
	}

	onnxConfig := new(clickseg.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, onnxConfig); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	if err := onnxConfig.New(); err != nil {
		return nil, err
	}

	encSession, err := onnxConfig.NewSession(cfg.EncodeModelPath, []string{contract.EncoderInput}, contract.EncoderOutputNames())
	if err != nil {
		onnxConfig.Destroy()
		return nil, fmt.Errorf("创建 Encoder 会话失败: %w", err)
	}

	decSession, err := onnxConfig.NewSession(cfg.DecodeModelPath, contract.DecoderInputs(), contract.DecoderOutputs())
	if err != nil {
		encSession.Destroy()
		onnxConfig.Destroy()
		return nil, fmt.Errorf("创建 Decoder 会话失败: %w", err)
	}

	logger.Info("sam engine ready",
		zap.Stringer("variant", cfg.Variant),
		zap.String("encoder", cfg.EncodeModelPath),
		zap.String("decoder", cfg.DecodeModelPath),
		zap.Bool("cuda", cfg.UseCuda))

	return &Engine{
		encoderSession: encSession,
		decoderSession: decSession,
		onnx:           onnxConfig,
		contract:       contract,
		config:         cfg,
		logger:         logger,
	}, nil
}

// Contract 当前模型类型的张量约定
func (e *Engine) Contract() Contract {
	return e.contract
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	if e.encoderSession != nil {
		if err := e.encoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Encoder ONNX 会话失败: %w", err)
		}
		e.encoderSession = nil
	}
	if e.decoderSession != nil {
		if err := e.decoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Decoder ONNX 会话失败: %w", err)
		}
		e.decoderSession = nil
	}
	e.onnx.Destroy()
	return nil
}

// Encode 图像特征提取
func (e *Engine) Encode(ctx context.Context, img image.Image) (Bundle, error) {
	in := preprocess(img, ModelInputSize, e.contract.EncoderLayout)
	inputTensor, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
	if err != nil {
		return nil, fmt.Errorf("创建图片 Input Tensor 失败: %w", err)
	}

	names := e.contract.EncoderOutputNames()
	outputs := make([]ort.Value, len(names))
	if err := runSession(ctx, e.encoderSession, []ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("%w: encoder 推理失败: %w", clickseg.ErrEngineFailure, err)
	}
	defer destroyValues(outputs)

	bundle := make(Bundle, len(names))
	for i, name := range names {
		t, err := toTensor(outputs[i])
		if err != nil {
			return nil, fmt.Errorf("encoder 输出 %s: %w", name, err)
		}
		bundle[e.contract.EncoderOutputs[name]] = t
	}
	return bundle, nil
}

// Run 执行一次解码
//
// inputs 需包含 contract.DecoderInputs() 中的全部张量, 返回 masks 与分数两个输出
func (e *Engine) Run(ctx context.Context, inputs map[string]clickseg.Tensor) (map[string]clickseg.Tensor, error) {
	names := e.contract.DecoderInputs()
	values := make([]ort.Value, 0, len(names))
	for _, name := range names {
		t, ok := inputs[name]
		if !ok {
			destroyValues(values)
			return nil, fmt.Errorf("%w: 缺少解码输入 %s", clickseg.ErrEngineFailure, name)
		}
		v, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
		if err != nil {
			destroyValues(values)
			return nil, fmt.Errorf("%w: 创建 %s Tensor 失败: %v", clickseg.ErrEngineFailure, name, err)
		}
		values = append(values, v)
	}

	outNames := e.contract.DecoderOutputs()
	outputs := make([]ort.Value, len(outNames))
	if err := runSession(ctx, e.decoderSession, values, outputs); err != nil {
		return nil, fmt.Errorf("%w: decoder 推理失败: %w", clickseg.ErrEngineFailure, err)
	}
	defer destroyValues(outputs)

	result := make(map[string]clickseg.Tensor, len(outNames))
	for i, name := range outNames {
		t, err := toTensor(outputs[i])
		if err != nil {
			return nil, fmt.Errorf("decoder 输出 %s: %w", name, err)
		}
		result[name] = t
	}
	return result, nil
}

// runSession 在独立 goroutine 中推理, 负责释放 in
//
// 成功时 out 由调用方释放; 失败或 ctx 取消时 out 在推理结束后一并释放
func runSession(ctx context.Context, s *ort.DynamicAdvancedSession, in, out []ort.Value) error {
	if err := ctx.Err(); err != nil {
		destroyValues(in)
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(in, out) }()

	select {
	case err := <-done:
		destroyValues(in)
		if err != nil {
			destroyValues(out)
		}
		return err
	case <-ctx.Done():
		go func() {
			<-done
			destroyValues(in)
			destroyValues(out)
		}()
		return ctx.Err()
	}
}

func destroyValues(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

// toTensor 复制 ONNX 输出, 使其在 Destroy 之后仍可使用
func toTensor(v ort.Value) (clickseg.Tensor, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return clickseg.Tensor{}, fmt.Errorf("%w: 输出不是 float32 张量", clickseg.ErrShapeMismatch)
	}
	return clickseg.Tensor{
		Data:  append([]float32(nil), t.GetData()...),
		Shape: append([]int64(nil), t.GetShape()...),
	}, nil
}
