package host

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/reweight"
)

// ScaledDotProduct is a single-head reference attention:
// softmax(Q·Kᵀ / √d)·V, computed per batch entry.
type ScaledDotProduct struct {
	Name string
}

// Compute implements Attention.
func (a *ScaledDotProduct) Compute(ctx context.Context, q, k, v Tensor, _ CallOptions) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}
	for _, t := range []Tensor{q, k, v} {
		if err := t.Validate(); err != nil {
			return Tensor{}, err
		}
	}
	if q.Batch != k.Batch || k.Batch != v.Batch || k.Seq != v.Seq || q.Channels != k.Channels {
		return Tensor{}, models.NewConfigurationError("attention.shape",
			fmt.Sprintf("q=%v k=%v v=%v", q.Shape(), k.Shape(), v.Shape()), "incompatible shapes")
	}

	out := reweight.NewTensor[float32](q.Batch, q.Seq, v.Channels)
	scale := 1 / math.Sqrt(float64(q.Channels))
	for b := 0; b < q.Batch; b++ {
		qm, km, vm := matrix(q, b), matrix(k, b), matrix(v, b)

		var scores mat.Dense
		scores.Mul(qm, km.T())
		scores.Scale(scale, &scores)
		softmaxRows(&scores)

		var res mat.Dense
		res.Mul(&scores, vm)
		for s := 0; s < q.Seq; s++ {
			row := out.Row(b, s)
			for c := range row {
				row[c] = float32(res.At(s, c))
			}
		}
	}
	return out, nil
}

func matrix(t Tensor, b int) *mat.Dense {
	data := make([]float64, t.Seq*t.Channels)
	for s := 0; s < t.Seq; s++ {
		for c, x := range t.Row(b, s) {
			data[s*t.Channels+c] = float64(x)
		}
	}
	return mat.NewDense(t.Seq, t.Channels, data)
}

func softmaxRows(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		peak := row[0]
		for _, x := range row[1:] {
			if x > peak {
				peak = x
			}
		}
		var sum float64
		for j := 0; j < c; j++ {
			row[j] = math.Exp(row[j] - peak)
			sum += row[j]
		}
		for j := 0; j < c; j++ {
			row[j] /= sum
		}
	}
}
