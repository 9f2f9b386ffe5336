package patch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nvandessel/grag/internal/host"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/reweight"
)

// attention wraps a layer's original attention. It reweights the keys with
// the pair scheduled for its layer and delegates to the original.
type attention struct {
	owner    *Controller
	session  *Session
	index    int
	layerID  string
	original host.Attention
}

func (a *attention) Compute(ctx context.Context, q, k, v host.Tensor, opts host.CallOptions) (host.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return host.Tensor{}, err
	}

	pair := a.session.Schedule.Lookup(a.index, opts.Progress, opts.ResolutionEdge)
	keys, err := reweight.Apply(k, opts.TextTokens, pair)
	if err != nil {
		return host.Tensor{}, fmt.Errorf("reweighting keys for %s: %w", a.layerID, err)
	}
	a.session.calls.Add(1)

	a.owner.logger.Log(ctx, logging.LevelTrace, "attention reweighted",
		"layer", a.index,
		"progress", opts.Progress,
		"edge", opts.ResolutionEdge,
		slog.Float64("lambda", pair.Lambda),
		slog.Float64("delta", pair.Delta),
	)
	return a.original.Compute(ctx, q, keys, v, opts)
}
