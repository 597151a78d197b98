package clickseg

import (
	"errors"
	"testing"
)

func TestNewTensor(t *testing.T) {
	if _, err := NewTensor([]int64{1, 2, 2}, make([]float32, 4)); err != nil {
		t.Fatalf("合法张量返回错误: %v", err)
	}
	_, err := NewTensor([]int64{1, 2, 2}, make([]float32, 3))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("期望 ErrShapeMismatch, 实际 %v", err)
	}
	_, err = NewTensor([]int64{-1, 2}, nil)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("负数维度期望 ErrShapeMismatch, 实际 %v", err)
	}

	// 1<<32 * 1<<32 在 int64 上回绕为 0, 不能与空数据匹配
	huge := Tensor{Shape: []int64{1 << 32, 1 << 32}}
	if n := huge.Elements(); n != -1 {
		t.Fatalf("溢出的形状 Elements = %d", n)
	}
	if err := huge.Validate(); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("溢出的形状期望 ErrShapeMismatch, 实际 %v", err)
	}
	if n := (Tensor{Shape: []int64{0, 1 << 62, 1 << 62}}).Elements(); n != 0 {
		t.Fatalf("含零维度 Elements = %d", n)
	}
}

func TestTensor_Clone(t *testing.T) {
	src := Tensor{Data: []float32{1, 2}, Shape: []int64{2}}
	dst := src.Clone()
	dst.Data[0] = 9
	dst.Shape[0] = 3
	if src.Data[0] != 1 || src.Shape[0] != 2 {
		t.Fatal("Clone 与原张量共享了内存")
	}
}

func TestZeros(t *testing.T) {
	z := Zeros(1, 1, 256, 256)
	if len(z.Data) != 256*256 {
		t.Fatalf("元素个数 %d", len(z.Data))
	}
	if z.Dim(2) != 256 || z.Dim(4) != -1 {
		t.Fatalf("Dim 错误: %d %d", z.Dim(2), z.Dim(4))
	}
}
