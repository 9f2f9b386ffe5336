package simulation

import (
	"github.com/nvandessel/grag/internal/host"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/patch"
	"github.com/nvandessel/grag/internal/schedule"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name    string
	Control models.ControlConfig
	Preset  *models.Preset
	Sampler Config // zero value = DefaultConfig()
	Layers  int    // host attention layers; 0 = schedule layer count

	// Baseline, when true, runs the same sampler unpatched first so the
	// patched trace can be compared against it.
	Baseline bool

	// Fault, when non-nil, disrupts the patched run at the given point.
	Fault *Fault

	// CancelAt, when non-nil, cancels the run context just before the
	// attention call at that point.
	CancelAt *Point

	// Mutate, when non-nil, is called before every attention call of the
	// patched run. Use it to change the model's structure mid-run.
	Mutate func(m *host.StaticModel, step, layer int)
}

// Point addresses one attention call.
type Point struct {
	Step  int
	Layer int
}

// Fault injects an error or a panic at a point.
type Fault struct {
	Point
	Err   error
	Panic bool
}

// SimulationResult captures both runs and the state left behind.
type SimulationResult struct {
	Name     string
	Schedule *schedule.Schedule
	Model    *host.StaticModel

	// Before is the model's attention snapshot taken before any run.
	Before map[string]host.Attention

	Baseline *Trace
	Patched  *Trace

	// Err is the patched run's error, including any restore failure.
	Err error

	// Panic is the recovered value when the patched run panicked.
	Panic any

	Controller  *patch.Controller
	Diagnostics *logging.Buffer
}

// Panicked reports whether the patched run panicked.
func (r SimulationResult) Panicked() bool {
	return r.Panic != nil
}
