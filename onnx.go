package clickseg

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// OnnxConfig ONNX Runtime 环境与会话选项
type OnnxConfig struct {
	SessionOptions *ort.SessionOptions

	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	// 可选参数
	UseCuda    bool // (可选) 是否启用 CUDA
	NumThreads int  // (可选) ONNX 线程数, 默认由CPU核心数决定
}

var (
	initErr error
	once    sync.Once
)

// New 初始化 ONNX 环境并创建会话选项
//
// 环境在进程内只初始化一次, 会话选项每次调用新建
func (cfg *OnnxConfig) New() error {
	if cfg.OnnxRuntimeLibPath == "" {
		return fmt.Errorf("OnnxRuntimeLibPath 不能为空")
	}
	once.Do(func() {
		ort.SetSharedLibraryPath(cfg.OnnxRuntimeLibPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return fmt.Errorf("初始化 ONNX Runtime 环境失败: %w", initErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("创建 SessionOptions 失败: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			options.Destroy()
			return err
		}
	}

	if cfg.UseCuda {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			options.Destroy()
			return fmt.Errorf("创建 CUDAProviderOptions 失败: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			options.Destroy()
			return fmt.Errorf("添加 CUDA 执行提供者失败: %w", err)
		}
	}
	cfg.SessionOptions = options

	return nil
}

// NewSession 校验模型的输入输出名称后创建动态会话
//
// # Params:
//
//	modelPath: 模型路径
//	inputs: 会话输入名称, Run 时按此顺序传入
//	outputs: 会话输出名称
func (cfg *OnnxConfig) NewSession(modelPath string, inputs, outputs []string) (*ort.DynamicAdvancedSession, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("读取模型 %s 的输入输出信息失败: %w", modelPath, err)
	}
	if err := requireNames("输入", inInfo, inputs); err != nil {
		return nil, fmt.Errorf("模型 %s: %w", modelPath, err)
	}
	if err := requireNames("输出", outInfo, outputs); err != nil {
		return nil, fmt.Errorf("模型 %s: %w", modelPath, err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputs, outputs, cfg.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建 ONNX 会话失败: %w", err)
	}
	return session, nil
}

// Destroy 释放会话选项
func (cfg *OnnxConfig) Destroy() {
	if cfg.SessionOptions != nil {
		cfg.SessionOptions.Destroy()
		cfg.SessionOptions = nil
	}
}

func requireNames(kind string, info []ort.InputOutputInfo, want []string) error {
	have := make([]string, 0, len(info))
	for _, i := range info {
		have = append(have, i.Name)
	}
	for _, name := range want {
		if !slices.Contains(have, name) {
			return fmt.Errorf("缺少%s %q, 模型提供 %v", kind, name, have)
		}
	}
	return nil
}

// DefaultLibraryPath 根据运行时环境判断加载哪个库文件
func DefaultLibraryPath() string {
	baseDir := "./lib/"
	libName := "onnxruntime"

	if runtime.GOOS == "windows" {
		return baseDir + libName + ".dll"
	}

	var ext string
	switch runtime.GOOS {
	case "darwin":
		ext = "dylib"
	case "linux":
		ext = "so"
	default:
		return baseDir + libName + "_amd64.so"
	}

	// ./lib/onnxruntime_<arch>.<so|dylib>
	return fmt.Sprintf("%s%s_%s.%s", baseDir, libName, runtime.GOARCH, ext)
}
