package simulation

import (
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/grag/internal/host"
)

// AssertRestored asserts that every attention layer is back to its
// pre-run attention and that no session is left open.
func AssertRestored(t *testing.T, result SimulationResult) {
	t.Helper()
	if changed := host.Changed(result.Model, result.Before); len(changed) > 0 {
		t.Errorf("AssertRestored: %s: layers not restored: %v", result.Name, changed)
	}
	if s, open := result.Controller.Active(result.Model); open {
		t.Errorf("AssertRestored: %s: session %s still open", result.Name, s.ID)
	}
}

// AssertSucceeded asserts that the patched run finished without error.
func AssertSucceeded(t *testing.T, result SimulationResult) {
	t.Helper()
	if result.Err != nil {
		t.Errorf("AssertSucceeded: %s: run failed: %v", result.Name, result.Err)
	}
	if result.Panicked() {
		t.Errorf("AssertSucceeded: %s: run panicked: %v", result.Name, result.Panic)
	}
}

// AssertErrorIs asserts that the patched run failed with target in its chain.
func AssertErrorIs(t *testing.T, result SimulationResult, target error) {
	t.Helper()
	if !errors.Is(result.Err, target) {
		t.Errorf("AssertErrorIs: %s: error = %v, want %v", result.Name, result.Err, target)
	}
}

// AssertIdenticalToBaseline asserts that the patched run reproduced the
// unpatched run exactly at every step.
func AssertIdenticalToBaseline(t *testing.T, result SimulationResult) {
	t.Helper()
	dev := deviation(t, result)
	for i, d := range dev {
		if d != 0 {
			t.Errorf("AssertIdenticalToBaseline: %s: step %d deviates by %.3g", result.Name, i, d)
		}
	}
}

// AssertDeviatesFromBaseline asserts that the final patched state differs
// from the unpatched one by more than minDeviation.
func AssertDeviatesFromBaseline(t *testing.T, result SimulationResult, minDeviation float64) {
	t.Helper()
	dev := deviation(t, result)
	if len(dev) == 0 {
		t.Fatalf("AssertDeviatesFromBaseline: %s: no steps recorded", result.Name)
	}
	if last := dev[len(dev)-1]; last <= minDeviation {
		t.Errorf("AssertDeviatesFromBaseline: %s: final deviation %.3g <= %.3g", result.Name, last, minDeviation)
	}
}

// AssertFinite asserts that no recorded state holds NaN or Inf.
func AssertFinite(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range []*Trace{result.Baseline, result.Patched} {
		if tr == nil {
			continue
		}
		for _, rec := range tr.Steps {
			for _, v := range rec.State.Data {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					t.Errorf("AssertFinite: %s: step %d holds a non-finite value", result.Name, rec.Step)
					break
				}
			}
		}
	}
}

// AssertDiagnostic asserts that event was recorded exactly count times.
func AssertDiagnostic(t *testing.T, result SimulationResult, event string, count int) {
	t.Helper()
	if got := len(result.Diagnostics.Events(event)); got != count {
		t.Errorf("AssertDiagnostic: %s: %s recorded %d times, want %d", result.Name, event, got, count)
	}
}

// AssertReweighted asserts how many attention calls went through the wrapper.
func AssertReweighted(t *testing.T, result SimulationResult, want int64) {
	t.Helper()
	if result.Patched == nil {
		t.Fatalf("AssertReweighted: %s: no patched trace", result.Name)
	}
	if result.Patched.Reweighted != want {
		t.Errorf("AssertReweighted: %s: reweighted %d calls, want %d", result.Name, result.Patched.Reweighted, want)
	}
}

func deviation(t *testing.T, result SimulationResult) []float64 {
	t.Helper()
	dev, err := Deviation(result.Baseline, result.Patched)
	if err != nil {
		t.Fatalf("%s: %v", result.Name, err)
	}
	return dev
}
