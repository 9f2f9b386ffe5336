// Package reweight applies the group-relative key transform
//
//	k̂ = λ·k_mean + δ·(k − k_mean)
//
// to the image segment of a joint text+image key tensor. k_mean is the mean
// over image tokens, taken independently per batch entry and channel. Text
// tokens pass through unchanged. Arithmetic is done in float64 regardless of
// the tensor's element type.
package reweight

import (
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"

	"github.com/nvandessel/grag/internal/models"
)

// Apply returns keys reweighted by pair. Tokens [0, imageStart) are text and
// are copied unchanged; tokens [imageStart, Seq) form the group.
//
// At the neutral pair Apply returns keys itself without touching it, even
// for a text-only call with an empty image segment. Otherwise it returns a
// new tensor and never mutates keys.
func Apply[T constraints.Float](keys Tensor[T], imageStart int, pair models.ModulationPair) (Tensor[T], error) {
	if err := keys.Validate(); err != nil {
		return Tensor[T]{}, err
	}
	if imageStart < 0 || imageStart > keys.Seq {
		return Tensor[T]{}, models.NewConfigurationError("image_start", imageStart, "must be within [0, seq]")
	}
	if pair.IsNeutral() {
		return keys, nil
	}
	if imageStart == keys.Seq {
		return Tensor[T]{}, models.NewConfigurationError("image_start", imageStart, "image segment is empty")
	}

	out := keys.Clone()
	c := keys.Channels
	n := keys.Seq - imageStart

	mean := make([]float64, c)
	row := make([]float64, c)
	for b := 0; b < keys.Batch; b++ {
		for i := range mean {
			mean[i] = 0
		}
		for s := imageStart; s < keys.Seq; s++ {
			widen(row, keys.Row(b, s))
			floats.Add(mean, row)
		}
		floats.Scale(1/float64(n), mean)

		for s := imageStart; s < keys.Seq; s++ {
			widen(row, keys.Row(b, s))
			// row = δ·(k − mean) + λ·mean
			floats.Sub(row, mean)
			floats.Scale(pair.Delta, row)
			floats.AddScaled(row, pair.Lambda, mean)
			narrow(out.Row(b, s), row)
		}
	}
	return out, nil
}

// GroupMean returns the per-batch, per-channel mean of tokens [from, Seq),
// laid out as [batch][channels].
func GroupMean[T constraints.Float](keys Tensor[T], from int) ([][]float64, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	if from < 0 || from >= keys.Seq {
		return nil, models.NewConfigurationError("image_start", from, "image segment is empty or out of range")
	}
	out := make([][]float64, keys.Batch)
	row := make([]float64, keys.Channels)
	n := float64(keys.Seq - from)
	for b := range out {
		mean := make([]float64, keys.Channels)
		for s := from; s < keys.Seq; s++ {
			widen(row, keys.Row(b, s))
			floats.Add(mean, row)
		}
		floats.Scale(1/n, mean)
		out[b] = mean
	}
	return out, nil
}

func widen[T constraints.Float](dst []float64, src []T) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}

func narrow[T constraints.Float](dst []T, src []float64) {
	for i, v := range src {
		dst[i] = T(v)
	}
}
