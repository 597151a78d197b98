package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/getcharzp/go-clickseg"
	"github.com/getcharzp/go-clickseg/mask"
	"github.com/getcharzp/go-clickseg/sam"
	"github.com/getcharzp/go-clickseg/session"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Onnx   OnnxConfig   `mapstructure:"onnx"`
	Model  ModelConfig  `mapstructure:"model"`
	Render RenderConfig `mapstructure:"render"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Upload UploadConfig `mapstructure:"upload"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// DecodeTimeout 单次点击解码的超时时间
	DecodeTimeout time.Duration `mapstructure:"decode_timeout"`
}

type OnnxConfig struct {
	LibPath    string `mapstructure:"lib_path"` // 为空时按平台推断
	UseCuda    bool   `mapstructure:"use_cuda"`
	NumThreads int    `mapstructure:"num_threads"`
}

type ModelConfig struct {
	Variant     string `mapstructure:"variant"` // sam2 或 mobilesam
	EncoderPath string `mapstructure:"encoder_path"`
	DecoderPath string `mapstructure:"decoder_path"`
	// MaskCountAxis masks 输出中 mask 数量所在的维度, -1 使用模型类型的默认值
	MaskCountAxis int `mapstructure:"mask_count_axis"`
}

type RenderConfig struct {
	Threshold    float64 `mapstructure:"threshold"`
	Alpha        float64 `mapstructure:"alpha"`
	OverlayColor string  `mapstructure:"overlay_color"` // 十六进制颜色或 auto
	ContourColor string  `mapstructure:"contour_color"` // 为空时不描边
	Mode         string  `mapstructure:"mode"`          // best 或 all
	FontPath     string  `mapstructure:"font_path"`     // 为空时使用内置字体
	ShowScore    bool    `mapstructure:"show_score"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	// MemorySize Redis 不可用时内存缓存的容量
	MemorySize int `mapstructure:"memory_size"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// Load 从 YAML 文件加载配置, 环境变量 CLICKSEG_<SECTION>_<KEY> 优先于文件
//
// 文件不存在时只使用默认值和环境变量; 文件存在但无法解析时返回错误
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CLICKSEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.decode_timeout", 10*time.Second)

	v.SetDefault("onnx.lib_path", "")
	v.SetDefault("onnx.use_cuda", false)
	v.SetDefault("onnx.num_threads", 0)

	v.SetDefault("model.variant", "sam2")
	v.SetDefault("model.encoder_path", "./sam_weights/sam2_hiera_small.encoder.onnx")
	v.SetDefault("model.decoder_path", "./sam_weights/sam2_hiera_small.decoder.onnx")
	v.SetDefault("model.mask_count_axis", -1)

	v.SetDefault("render.threshold", sam.DefaultThreshold)
	v.SetDefault("render.alpha", 0.5)
	v.SetDefault("render.overlay_color", "#00ff00")
	v.SetDefault("render.contour_color", "#ff0000")
	v.SetDefault("render.mode", "best")
	v.SetDefault("render.font_path", "")
	v.SetDefault("render.show_score", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("redis.memory_size", 8)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})
}

// getDefaultConfig 仅包含默认值的配置, 不读取环境变量
func getDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// EngineConfig 转换为推理引擎配置
func (c *Config) EngineConfig() (sam.Config, error) {
	variant, err := sam.ParseVariant(c.Model.Variant)
	if err != nil {
		return sam.Config{}, err
	}
	cfg := sam.Config{
		OnnxRuntimeLibPath: c.Onnx.LibPath,
		EncodeModelPath:    c.Model.EncoderPath,
		DecodeModelPath:    c.Model.DecoderPath,
		Variant:            variant,
		UseCuda:            c.Onnx.UseCuda,
		NumThreads:         c.Onnx.NumThreads,
	}
	if cfg.OnnxRuntimeLibPath == "" {
		cfg.OnnxRuntimeLibPath = clickseg.DefaultLibraryPath()
	}

	if c.Model.MaskCountAxis >= 0 {
		contract, err := sam.ContractFor(variant)
		if err != nil {
			return sam.Config{}, err
		}
		layout, err := countAxisLayout(contract.Layout, c.Model.MaskCountAxis)
		if err != nil {
			return sam.Config{}, err
		}
		cfg.MaskLayout = &layout
	}
	return cfg, nil
}

// countAxisLayout 把 mask 数量维度移到 axis, 高和宽仍为最后两维
func countAxisLayout(def mask.Layout, axis int) (mask.Layout, error) {
	if axis == def.CountAxis {
		return def, nil
	}
	if axis >= def.HeightAxis {
		return mask.Layout{}, fmt.Errorf("model.mask_count_axis=%d 必须小于高度所在维度 %d", axis, def.HeightAxis)
	}
	return mask.Layout{CountAxis: axis, HeightAxis: def.HeightAxis, WidthAxis: def.WidthAxis}, nil
}

// SessionOptions 按 render 配置构建会话参数
func (c *Config) SessionOptions(contract sam.Contract) (session.Options, error) {
	opts := session.DefaultOptions(contract)

	if err := session.ValidThreshold(c.Render.Threshold); err != nil {
		return opts, err
	}
	opts.Threshold = float32(c.Render.Threshold)
	opts.Alpha = c.Render.Alpha

	switch strings.ToLower(strings.TrimSpace(c.Render.OverlayColor)) {
	case "auto":
		opts.AutoColor = true
	case "":
	default:
		col, err := mask.ParseColor(c.Render.OverlayColor)
		if err != nil {
			return opts, fmt.Errorf("render.overlay_color: %w", err)
		}
		opts.OverlayColor = col
	}

	if c.Render.ContourColor == "" {
		opts.ContourColor.A = 0
	} else {
		col, err := mask.ParseColor(c.Render.ContourColor)
		if err != nil {
			return opts, fmt.Errorf("render.contour_color: %w", err)
		}
		opts.ContourColor = col
	}

	mode, err := session.ParseMode(c.Render.Mode)
	if err != nil {
		return opts, err
	}
	opts.Mode = mode

	if c.Render.ShowScore || c.Render.FontPath != "" {
		annotator, err := clickseg.NewAnnotator(c.Render.FontPath)
		if err != nil {
			return opts, err
		}
		opts.Annotator = annotator
	}
	return opts, nil
}
