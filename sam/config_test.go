package sam

import (
	"slices"
	"testing"

	"github.com/getcharzp/go-clickseg"
	"github.com/getcharzp/go-clickseg/mask"
)

func TestParseVariant(t *testing.T) {
	cases := map[string]Variant{
		"mobilesam": SingleEmbedding,
		" SAM2 ":    MultiFeature,
		"multi":     MultiFeature,
	}
	for s, want := range cases {
		got, err := ParseVariant(s)
		if err != nil || got != want {
			t.Fatalf("ParseVariant(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseVariant("sam3"); err == nil {
		t.Fatal("未知类型应返回错误")
	}
}

func TestContract_DecoderInputs(t *testing.T) {
	single, _ := ContractFor(SingleEmbedding)
	want := []string{ImageEmbed, PointCoords, PointLabels, MaskInput, HasMaskInput, OrigImSize}
	if got := single.DecoderInputs(); !slices.Equal(got, want) {
		t.Fatalf("mobilesam inputs = %v", got)
	}

	multi, _ := ContractFor(MultiFeature)
	want = []string{ImageEmbed, HighResFeats0, HighResFeats1, PointCoords, PointLabels, MaskInput, HasMaskInput}
	if got := multi.DecoderInputs(); !slices.Equal(got, want) {
		t.Fatalf("sam2 inputs = %v", got)
	}
	if got := multi.EncoderOutputNames(); !slices.Equal(got, []string{"image_embed", "high_res_feats_0", "high_res_feats_1"}) {
		t.Fatalf("sam2 encoder outputs = %v", got)
	}

	// high_res_feats 对 sam2 必需, mobilesam 忽略多余的特征
	embedOnly := Bundle{ImageEmbed: clickseg.Zeros(1, 2, 2, 2)}
	if got := multi.Missing(embedOnly); !slices.Equal(got, []string{HighResFeats0, HighResFeats1}) {
		t.Fatalf("sam2 missing = %v", got)
	}
	full := Bundle{
		ImageEmbed:    clickseg.Zeros(1, 2, 2, 2),
		HighResFeats0: clickseg.Zeros(1, 1, 4, 4),
		HighResFeats1: clickseg.Zeros(1, 1, 2, 2),
	}
	if got := single.Missing(full); len(got) != 0 {
		t.Fatalf("mobilesam missing = %v", got)
	}
}

func TestConfig_ContractLayoutOverride(t *testing.T) {
	cfg := DefaultConfig()
	c, err := cfg.Contract()
	if err != nil {
		t.Fatal(err)
	}
	if c.Layout.CountAxis != 0 {
		t.Fatalf("sam2 默认 CountAxis = %d", c.Layout.CountAxis)
	}

	cfg.MaskLayout = &mask.Layout{CountAxis: 1, HeightAxis: 2, WidthAxis: 3}
	c, _ = cfg.Contract()
	if c.Layout.CountAxis != 1 {
		t.Fatalf("覆盖后 CountAxis = %d", c.Layout.CountAxis)
	}

	// 覆盖不影响全局约定
	if orig, _ := ContractFor(MultiFeature); orig.Layout.CountAxis != 0 {
		t.Fatal("全局约定被修改")
	}
}
