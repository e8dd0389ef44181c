package inference

import "fmt"

// Tensor is a dense float32 array in row-major NHWC layout.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape ...int) Tensor {
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, elements(shape))}
}

// Validate checks that Data holds exactly the elements Shape describes.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("tensor has no shape")
	}
	for _, dim := range t.Shape {
		if dim <= 0 {
			return fmt.Errorf("tensor shape %v has non-positive dimension", t.Shape)
		}
	}
	if want := elements(t.Shape); want != len(t.Data) {
		return fmt.Errorf("tensor shape %v needs %d values, has %d", t.Shape, want, len(t.Data))
	}
	return nil
}

// Empty reports whether the tensor carries no data. Preprocessors never
// return an empty tensor with a nil error.
func (t Tensor) Empty() bool {
	return len(t.Data) == 0
}

func elements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}
