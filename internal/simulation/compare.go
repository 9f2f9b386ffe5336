package simulation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nvandessel/grag/internal/host"
	"github.com/nvandessel/grag/internal/patch"
	"github.com/nvandessel/grag/internal/schedule"
)

// Comparison summarizes an unpatched and a patched run over the same
// synthetic model.
type Comparison struct {
	Preset         string    `json:"preset"`
	Steps          int       `json:"steps"`
	Layers         int       `json:"layers"`
	Calls          int       `json:"calls"`
	Reweighted     int64     `json:"reweighted"`
	Deviation      []float64 `json:"deviation"`
	FinalDeviation float64   `json:"final_deviation"`
	Restored       bool      `json:"restored"`
}

// Compare samples a fresh StaticModel with the given number of layers, first
// unmodified and then with sched installed through ctrl, and reports how far
// the patched states drift from the baseline.
func Compare(ctx context.Context, ctrl *patch.Controller, sched *schedule.Schedule, cfg Config, layers int) (*Comparison, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if layers < 1 {
		return nil, fmt.Errorf("synthetic model needs at least one layer, got %d", layers)
	}

	model := host.NewStaticModel(fmt.Sprintf("sim-%d-%s", layers, uuid.NewString()[:8]), layers)
	before := host.Snapshot(model)

	baseline, err := Sample(ctx, model, cfg, Hooks{})
	if err != nil {
		return nil, fmt.Errorf("baseline run failed: %w", err)
	}
	patched, err := SamplePatched(ctx, ctrl, model, sched, cfg, Hooks{})
	if err != nil {
		return nil, fmt.Errorf("patched run failed: %w", err)
	}
	dev, err := Deviation(baseline, patched)
	if err != nil {
		return nil, err
	}

	c := &Comparison{
		Preset:     sched.Preset,
		Steps:      len(patched.Steps),
		Layers:     layers,
		Calls:      patched.Calls,
		Reweighted: patched.Reweighted,
		Deviation:  dev,
		Restored:   len(host.Changed(model, before)) == 0,
	}
	if len(dev) > 0 {
		c.FinalDeviation = dev[len(dev)-1]
	}
	return c, nil
}
