package server

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/getcharzp/go-clickseg"
	"github.com/getcharzp/go-clickseg/sam"
	"github.com/getcharzp/go-clickseg/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
model:
  variant: mobilesam
  mask_count_axis: 0
render:
  threshold: 3.5
  overlay_color: auto
  mode: all
redis:
  enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != ":9090" || cfg.Server.DecodeTimeout != 10*time.Second {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Redis.TTL != 24*time.Hour || !cfg.Redis.Enabled {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if len(cfg.Upload.AllowedTypes) != 3 {
		t.Fatalf("upload = %+v", cfg.Upload)
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if ec.Variant != sam.SingleEmbedding || ec.MaskLayout == nil || ec.MaskLayout.CountAxis != 0 {
		t.Fatalf("engine config = %+v", ec)
	}
	if ec.OnnxRuntimeLibPath != clickseg.DefaultLibraryPath() {
		t.Fatalf("lib path = %s", ec.OnnxRuntimeLibPath)
	}
	contract, err := ec.Contract()
	if err != nil {
		t.Fatal(err)
	}
	if contract.Layout.CountAxis != 0 || contract.Layout.HeightAxis != 2 {
		t.Fatalf("layout = %+v", contract.Layout)
	}

	opts, err := cfg.SessionOptions(contract)
	if err != nil {
		t.Fatal(err)
	}
	if !opts.AutoColor || opts.Mode != session.ModeAll || opts.Threshold != 3.5 {
		t.Fatalf("options = %+v", opts)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != ":8080" || cfg.Model.Variant != "sam2" || cfg.Model.MaskCountAxis != -1 {
		t.Fatalf("cfg = %+v", cfg)
	}
	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if ec.Variant != sam.MultiFeature || ec.MaskLayout != nil {
		t.Fatalf("engine config = %+v", ec)
	}
}

func TestLoad_EnvWithoutFile(t *testing.T) {
	t.Setenv("CLICKSEG_MODEL_VARIANT", "mobilesam")
	t.Setenv("CLICKSEG_SERVER_PORT", ":9999")
	t.Setenv("CLICKSEG_RENDER_THRESHOLD", "4.5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Variant != "mobilesam" || cfg.Server.Port != ":9999" || cfg.Render.Threshold != 4.5 {
		t.Fatalf("环境变量未生效: model=%+v server=%+v render=%+v", cfg.Model, cfg.Server, cfg.Render)
	}
	// 未设置的项保持默认值
	if cfg.Redis.TTL != 24*time.Hour {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
model:
  variant: sam2
`)
	t.Setenv("CLICKSEG_MODEL_VARIANT", "mobilesam")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Variant != "mobilesam" {
		t.Fatalf("variant = %s", cfg.Model.Variant)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "server: [port\n")
	if _, err := Load(path); err == nil {
		t.Fatal("格式错误的配置文件应返回错误")
	}
}

func TestEngineConfig_Errors(t *testing.T) {
	cfg := getDefaultConfig()
	cfg.Model.Variant = "sam3"
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected unknown variant error")
	}

	cfg = getDefaultConfig()
	cfg.Model.MaskCountAxis = 3
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected invalid axis error")
	}
}

func TestSessionOptions(t *testing.T) {
	contract, err := sam.ContractFor(sam.MultiFeature)
	if err != nil {
		t.Fatal(err)
	}

	cfg := getDefaultConfig()
	cfg.Render.OverlayColor = "#0000ff"
	cfg.Render.ContourColor = ""
	opts, err := cfg.SessionOptions(contract)
	if err != nil {
		t.Fatal(err)
	}
	if opts.OverlayColor != (color.RGBA{B: 255, A: 255}) || opts.ContourColor.A != 0 {
		t.Fatalf("options = %+v", opts)
	}

	cfg = getDefaultConfig()
	cfg.Render.OverlayColor = "green-ish"
	if _, err := cfg.SessionOptions(contract); err == nil {
		t.Fatal("expected color error")
	}

	cfg = getDefaultConfig()
	cfg.Render.Threshold = 21
	if _, err := cfg.SessionOptions(contract); !errors.Is(err, clickseg.ErrInvalidThreshold) {
		t.Fatalf("err = %v", err)
	}

	cfg = getDefaultConfig()
	cfg.Render.ShowScore = true
	opts, err = cfg.SessionOptions(contract)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Annotator == nil {
		t.Fatal("show_score 应创建 Annotator")
	}
	opts.Annotator.Close()
}
