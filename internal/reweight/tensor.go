package reweight

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/nvandessel/grag/internal/models"
)

// Tensor is a dense row-major [batch, seq, channels] tensor.
type Tensor[T constraints.Float] struct {
	Batch    int
	Seq      int
	Channels int
	Data     []T
}

// NewTensor allocates a zeroed tensor.
func NewTensor[T constraints.Float](batch, seq, channels int) Tensor[T] {
	return Tensor[T]{
		Batch:    batch,
		Seq:      seq,
		Channels: channels,
		Data:     make([]T, batch*seq*channels),
	}
}

// FromSlice wraps data as a tensor without copying.
func FromSlice[T constraints.Float](batch, seq, channels int, data []T) (Tensor[T], error) {
	t := Tensor[T]{Batch: batch, Seq: seq, Channels: channels, Data: data}
	if err := t.Validate(); err != nil {
		return Tensor[T]{}, err
	}
	return t, nil
}

// Validate checks that the shape is positive and matches the data length.
func (t Tensor[T]) Validate() error {
	if t.Batch < 1 || t.Seq < 1 || t.Channels < 1 {
		return models.NewConfigurationError("keys.shape", t.Shape(), "every dimension must be >= 1")
	}
	if len(t.Data) != t.Batch*t.Seq*t.Channels {
		return models.NewConfigurationError("keys.data", len(t.Data),
			fmt.Sprintf("length must equal %d", t.Batch*t.Seq*t.Channels))
	}
	return nil
}

// Shape returns [batch, seq, channels].
func (t Tensor[T]) Shape() [3]int {
	return [3]int{t.Batch, t.Seq, t.Channels}
}

// Row returns the channel vector at (b, s). It aliases the tensor data.
func (t Tensor[T]) Row(b, s int) []T {
	off := (b*t.Seq + s) * t.Channels
	return t.Data[off : off+t.Channels]
}

// Clone returns a deep copy.
func (t Tensor[T]) Clone() Tensor[T] {
	out := t
	out.Data = append([]T(nil), t.Data...)
	return out
}

// Same reports whether a and b share the same backing array.
func Same[T constraints.Float](a, b Tensor[T]) bool {
	if len(a.Data) == 0 || len(b.Data) == 0 {
		return len(a.Data) == len(b.Data)
	}
	return &a.Data[0] == &b.Data[0] && len(a.Data) == len(b.Data)
}
