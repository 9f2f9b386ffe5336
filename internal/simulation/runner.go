package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/grag/internal/host"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/schedule"
)

// Runner orchestrates simulation scenarios against a real patch controller
// and in-process host model.
type Runner struct {
	t *testing.T
}

// NewRunner creates a simulation runner with a sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &Runner{t: t}
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()

	// Phase 1: Build the schedule.
	sched, err := schedule.Build(scenario.Control, scenario.Preset)
	if err != nil {
		r.t.Fatalf("%s: schedule.Build: %v", scenario.Name, err)
	}

	cfg := scenario.Sampler
	if cfg.Steps == 0 {
		cfg = DefaultConfig()
	}
	layers := scenario.Layers
	if layers == 0 {
		layers = sched.LayerCount()
	}

	// Phase 2: Wire the model, controller and diagnostics.
	name := scenario.Name
	if name == "" {
		name = "sim"
	}
	model := host.NewStaticModel(name, layers)
	buf := &logging.Buffer{}
	diag := logging.NewDiagnosticsLog(r.t.TempDir(), "debug")
	r.t.Cleanup(diag.Close)
	ctrl := patchController(buf, diag)

	result := SimulationResult{
		Name:        scenario.Name,
		Schedule:    sched,
		Model:       model,
		Before:      host.Snapshot(model),
		Controller:  ctrl,
		Diagnostics: buf,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Phase 3: Optional unpatched baseline.
	if scenario.Baseline {
		result.Baseline, err = Sample(ctx, model, cfg, Hooks{})
		if err != nil {
			r.t.Fatalf("%s: baseline run: %v", scenario.Name, err)
		}
	}

	// Phase 4: Patched run with disruptions.
	hooks := Hooks{BeforeCall: func(ctx context.Context, step, layer int) error {
		at := Point{Step: step, Layer: layer}
		if scenario.Mutate != nil {
			scenario.Mutate(model, step, layer)
		}
		if scenario.CancelAt != nil && *scenario.CancelAt == at {
			cancel()
		}
		if f := scenario.Fault; f != nil && f.Point == at {
			if f.Panic {
				panic("injected panic at " + scenario.Name)
			}
			return f.Err
		}
		return nil
	}}

	func() {
		defer func() {
			result.Panic = recover()
		}()
		result.Patched, result.Err = SamplePatched(ctx, ctrl, model, sched, cfg, hooks)
	}()

	return result
}
