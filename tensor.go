package clickseg

import (
	"fmt"
	"math"
)

// Tensor 命名张量的数据与形状
//
// Data 为行优先(row-major)展开的 float32 数据，Shape 为各维度大小
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewTensor 创建张量并校验数据长度与形状一致
func NewTensor(shape []int64, data []float32) (Tensor, error) {
	t := Tensor{Data: data, Shape: shape}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// Zeros 创建全零张量
func Zeros(shape ...int64) Tensor {
	t := Tensor{Shape: append([]int64(nil), shape...)}
	t.Data = make([]float32, t.Elements())
	return t
}

// Elements 形状对应的元素个数, 含负数维度或乘积超出 int 范围时返回 -1
func (t Tensor) Elements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		if d < 0 || d > math.MaxInt {
			return -1
		}
		if d > 0 && n > math.MaxInt/int(d) {
			return -1
		}
		n *= int(d)
	}
	return n
}

// Validate 校验 len(Data) == prod(Shape)
func (t Tensor) Validate() error {
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%w: 形状包含负数维度 %v", ErrShapeMismatch, t.Shape)
		}
	}
	n := t.Elements()
	if n < 0 {
		return fmt.Errorf("%w: 形状 %v 的元素个数溢出", ErrShapeMismatch, t.Shape)
	}
	if n != len(t.Data) {
		return fmt.Errorf("%w: 形状 %v 需要 %d 个元素, 实际 %d", ErrShapeMismatch, t.Shape, n, len(t.Data))
	}
	return nil
}

// Clone 深拷贝
func (t Tensor) Clone() Tensor {
	return Tensor{
		Data:  append([]float32(nil), t.Data...),
		Shape: append([]int64(nil), t.Shape...),
	}
}

// Dim 返回第 axis 维的大小, axis 越界返回 -1
func (t Tensor) Dim(axis int) int {
	if axis < 0 || axis >= len(t.Shape) {
		return -1
	}
	return int(t.Shape[axis])
}
