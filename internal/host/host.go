// Package host defines the boundary between grag and the model it patches.
//
// A host model exposes an ordered set of attention layers. Each layer holds
// an Attention that grag temporarily replaces during a sampling run. During
// sampling the host reports, per call, the denoising progress, the spatial
// resolution and where the image tokens start in the joint key tensor.
package host

import (
	"context"

	"github.com/nvandessel/grag/internal/reweight"
)

// Tensor is the element layout exchanged with the host.
type Tensor = reweight.Tensor[float32]

// CallOptions carries the per-call facts grag needs to pick (λ, δ).
type CallOptions struct {
	// Progress is the normalized denoising progress in [0, 1].
	Progress float64

	// ResolutionEdge is the current spatial edge length in pixels.
	ResolutionEdge int

	// TextTokens is the number of leading text tokens in the joint sequence.
	// Image tokens start at this index.
	TextTokens int
}

// Attention computes attention output for one layer.
// Implementations must be comparable (typically pointers) so a caller can
// check that a layer's attention was restored by identity.
type Attention interface {
	Compute(ctx context.Context, q, k, v Tensor, opts CallOptions) (Tensor, error)
}

// Layer is one attention-bearing transformer block.
type Layer interface {
	ID() string
	Attention() Attention
	SetAttention(a Attention)
}

// Model is the host model. AttentionLayers returns layers in depth order;
// the index into that slice is the layer index used for scheduling.
// Patch sessions are keyed by the Model value itself, so implementations
// must be comparable; ID is only a label for logs and errors.
type Model interface {
	ID() string
	AttentionLayers() []Layer
}

// Snapshot records each layer's current attention, keyed by layer ID.
func Snapshot(m Model) map[string]Attention {
	layers := m.AttentionLayers()
	out := make(map[string]Attention, len(layers))
	for _, l := range layers {
		out[l.ID()] = l.Attention()
	}
	return out
}

// Changed lists layer IDs whose attention differs from before, plus IDs
// that disappeared. An empty result means the model is back to its snapshot.
func Changed(m Model, before map[string]Attention) []string {
	var changed []string
	seen := make(map[string]bool, len(before))
	for _, l := range m.AttentionLayers() {
		seen[l.ID()] = true
		if orig, ok := before[l.ID()]; !ok || orig != l.Attention() {
			changed = append(changed, l.ID())
		}
	}
	for id := range before {
		if !seen[id] {
			changed = append(changed, id)
		}
	}
	return changed
}
