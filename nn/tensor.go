package nn

import (
	"math"
)

// Tensor is a dense row-major float32 buffer with shape bookkeeping.
// Image and activation tensors use NCHW layout: [batch][channels][height][width].
type Tensor struct {
	Data  []float32
	Shape []int
}

// NewTensor creates a zero-initialized tensor with the given shape
func NewTensor(shape ...int) *Tensor {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return &Tensor{Data: make([]float32, size), Shape: shape}
}

// NewTensorFromSlice wraps an existing slice without copying.
// Returns nil if the slice length does not match the shape.
func NewTensorFromSlice(data []float32, shape ...int) *Tensor {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(data) {
		return nil
	}
	return &Tensor{Data: data, Shape: shape}
}

// Size returns the total number of elements
func (t *Tensor) Size() int {
	size := 1
	for _, d := range t.Shape {
		size *= d
	}
	return size
}

// Index converts NCHW indices to a flat index
func (t *Tensor) Index(n, c, h, w int) int {
	return ((n*t.Shape[1]+c)*t.Shape[2]+h)*t.Shape[3] + w
}

// Clone returns a deep copy
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	return &Tensor{Data: data, Shape: shape}
}

// IsFinite reports whether every element is a finite number
func (t *Tensor) IsFinite() bool {
	for _, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
