package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/host"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/patch"
	"github.com/nvandessel/grag/internal/schedule"
	"github.com/nvandessel/grag/internal/tiers"
	"github.com/nvandessel/grag/internal/timestep"
)

// Config describes a synthetic sampling run.
type Config struct {
	Steps       int    `json:"steps" yaml:"steps"`
	Batch       int    `json:"batch" yaml:"batch"`
	TextTokens  int    `json:"text_tokens" yaml:"text_tokens"`
	ImageTokens int    `json:"image_tokens" yaml:"image_tokens"`
	Channels    int    `json:"channels" yaml:"channels"`
	Seed        uint64 `json:"seed" yaml:"seed"`

	// Resolutions lists the spatial edge of each equal-length phase of the
	// run, low to high for progressive sampling. Empty means one phase at
	// the edge implied by ImageTokens.
	Resolutions []int `json:"resolutions,omitempty" yaml:"resolutions,omitempty"`

	PatchSize int `json:"patch_size,omitempty" yaml:"patch_size,omitempty"`
}

// DefaultConfig returns a small run that finishes in milliseconds.
func DefaultConfig() Config {
	return Config{
		Steps:       12,
		Batch:       1,
		TextTokens:  8,
		ImageTokens: 64,
		Channels:    16,
		Seed:        1,
		PatchSize:   constants.DefaultPatchSize,
	}
}

// Validate checks the run shape.
func (c Config) Validate() error {
	checks := []struct {
		field string
		value int
	}{
		{"steps", c.Steps},
		{"batch", c.Batch},
		{"image_tokens", c.ImageTokens},
		{"channels", c.Channels},
	}
	for _, ch := range checks {
		if ch.value < 1 {
			return models.NewConfigurationError("simulation."+ch.field, ch.value, "must be >= 1")
		}
	}
	if c.TextTokens < 0 {
		return models.NewConfigurationError("simulation.text_tokens", c.TextTokens, "must be >= 0")
	}
	for i, edge := range c.Resolutions {
		if edge <= 0 {
			return models.NewConfigurationError(fmt.Sprintf("simulation.resolutions[%d]", i), edge, "must be positive")
		}
	}
	return nil
}

// EdgeAt returns the spatial edge reported at step.
func (c Config) EdgeAt(step int) int {
	if len(c.Resolutions) == 0 {
		return tiers.EdgeFromTokens(c.ImageTokens, c.PatchSize)
	}
	phase := step * len(c.Resolutions) / c.Steps
	if phase >= len(c.Resolutions) {
		phase = len(c.Resolutions) - 1
	}
	return c.Resolutions[phase]
}

// Hooks observe or disrupt a run. Either may be nil.
type Hooks struct {
	// BeforeCall runs before each attention call. A non-nil error aborts
	// the run and is returned from Sample.
	BeforeCall func(ctx context.Context, step, layer int) error

	// AfterStep runs once every layer of a step has been visited.
	AfterStep func(rec StepRecord)
}

// StepRecord is the hidden state after one step.
type StepRecord struct {
	Step     int         `json:"step"`
	Progress float64     `json:"progress"`
	Edge     int         `json:"edge"`
	Mean     float64     `json:"mean"`
	Std      float64     `json:"std"`
	Norm     float64     `json:"norm"`
	State    host.Tensor `json:"-"`
}

// Trace is the outcome of one run. After an aborted run it holds the steps
// completed before the abort.
type Trace struct {
	Steps   []StepRecord `json:"steps"`
	Final   host.Tensor  `json:"-"`
	Calls   int          `json:"calls"`
	Patched bool         `json:"patched"`

	// Session and Reweighted are set for patched runs.
	Session    string `json:"session,omitempty"`
	Reweighted int64  `json:"reweighted,omitempty"`
}

// Sample runs the loop against model as it currently is.
func Sample(ctx context.Context, model host.Model, cfg Config, hooks Hooks) (*Trace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	x := initialState(cfg)
	tr := &Trace{Steps: make([]StepRecord, 0, cfg.Steps)}

	for step := 0; step < cfg.Steps; step++ {
		opts := host.CallOptions{
			Progress:       timestep.Progress(step, cfg.Steps),
			ResolutionEdge: cfg.EdgeAt(step),
			TextTokens:     cfg.TextTokens,
		}
		for i, layer := range model.AttentionLayers() {
			if hooks.BeforeCall != nil {
				if err := hooks.BeforeCall(ctx, step, i); err != nil {
					tr.Final = x
					return tr, err
				}
			}
			out, err := layer.Attention().Compute(ctx, x, x, x, opts)
			tr.Calls++
			if err != nil {
				tr.Final = x
				return tr, fmt.Errorf("step %d layer %s: %w", step, layer.ID(), err)
			}
			x = residual(x, out)
		}

		rec := record(step, opts, x)
		tr.Steps = append(tr.Steps, rec)
		if hooks.AfterStep != nil {
			hooks.AfterStep(rec)
		}
	}
	tr.Final = x
	return tr, nil
}

// SamplePatched runs the loop inside a patch session for sched. The model
// is restored before SamplePatched returns, whatever the outcome.
func SamplePatched(ctx context.Context, ctrl *patch.Controller, model host.Model, sched *schedule.Schedule, cfg Config, hooks Hooks) (*Trace, error) {
	var tr *Trace
	err := ctrl.WithSession(ctx, model, sched, func(ctx context.Context, s *patch.Session) error {
		var err error
		tr, err = Sample(ctx, model, cfg, hooks)
		if tr != nil {
			tr.Patched = true
			tr.Session = s.ID
			tr.Reweighted = s.Calls()
		}
		return err
	})
	return tr, err
}

// Deviation returns, per step, the relative L2 distance of b's state from
// a's. Both traces must cover the same steps.
func Deviation(a, b *Trace) ([]float64, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("deviation needs two traces")
	}
	if len(a.Steps) != len(b.Steps) {
		return nil, fmt.Errorf("trace lengths differ: %d vs %d", len(a.Steps), len(b.Steps))
	}
	out := make([]float64, len(a.Steps))
	for i := range a.Steps {
		av, bv := widen(a.Steps[i].State.Data), widen(b.Steps[i].State.Data)
		if len(av) != len(bv) {
			return nil, fmt.Errorf("step %d: state sizes differ", i)
		}
		norm := floats.Norm(av, 2)
		if norm == 0 {
			norm = 1
		}
		out[i] = floats.Distance(av, bv, 2) / norm
	}
	return out, nil
}

func initialState(cfg Config) host.Tensor {
	x := host.Tensor{}
	x.Batch, x.Seq, x.Channels = cfg.Batch, cfg.TextTokens+cfg.ImageTokens, cfg.Channels
	x.Data = make([]float32, x.Batch*x.Seq*x.Channels)

	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)}
	for i := range x.Data {
		x.Data[i] = float32(dist.Rand())
	}
	return x
}

// residual returns normalize(x + out), row by row.
func residual(x, out host.Tensor) host.Tensor {
	next := x.Clone()
	row := make([]float64, x.Channels)
	for b := 0; b < x.Batch; b++ {
		for s := 0; s < x.Seq; s++ {
			xr, or, nr := x.Row(b, s), out.Row(b, s), next.Row(b, s)
			for c := range row {
				row[c] = float64(xr[c]) + float64(or[c])
			}
			mean, std := stat.MeanStdDev(row, nil)
			floats.AddConst(-mean, row)
			if std > 0 && !math.IsNaN(std) {
				floats.Scale(1/std, row)
			}
			for c, v := range row {
				nr[c] = float32(v)
			}
		}
	}
	return next
}

func record(step int, opts host.CallOptions, x host.Tensor) StepRecord {
	data := widen(x.Data)
	mean, std := stat.MeanStdDev(data, nil)
	return StepRecord{
		Step:     step,
		Progress: opts.Progress,
		Edge:     opts.ResolutionEdge,
		Mean:     mean,
		Std:      std,
		Norm:     floats.Norm(data, 2),
		State:    x.Clone(),
	}
}

func widen(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}
