package resolve

import (
	"math"
	"testing"

	"github.com/nvandessel/grag/internal/models"
)

const tol = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) <= tol
}

var testPresets = []models.Preset{
	{Name: "Paper: Balanced", LambdaBase: 1.05, DeltaBase: 1.10, StrengthDefault: 1.0},
	{Name: "Paper: Subtle", LambdaBase: 1.00, DeltaBase: 1.05, StrengthDefault: 1.0},
	{Name: "v2.2.1: Balanced", LambdaBase: 1.00, DeltaBase: 1.50, StrengthDefault: 1.0},
	{Name: "Clean Room: Gentle", LambdaBase: 0.85, DeltaBase: 1.15, StrengthDefault: 1.0},
}

func TestResolve_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		preset     models.Preset
		strength   float64
		wantLambda float64
		wantDelta  float64
	}{
		{"paper balanced half strength", testPresets[0], 0.5, 1.025, 1.050},
		{"v2.2.1 balanced tenth strength", testPresets[2], 0.1, 1.000, 1.050},
		{"clean room double strength", testPresets[3], 2.0, 0.70, 1.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.preset
			got, err := Resolve(&p, tt.strength, NoOverrides())
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !approx(got.Lambda, tt.wantLambda) || !approx(got.Delta, tt.wantDelta) {
				t.Errorf("Resolve() = %v, want (%.3f, %.3f)", got, tt.wantLambda, tt.wantDelta)
			}
		})
	}
}

func TestResolve_StrengthBoundaries(t *testing.T) {
	for _, p := range testPresets {
		p := p
		zero, err := Resolve(&p, 0, NoOverrides())
		if err != nil {
			t.Fatalf("Resolve(%s, 0) error = %v", p.Name, err)
		}
		if !zero.IsNeutral() {
			t.Errorf("Resolve(%s, 0) = %v, want exactly neutral", p.Name, zero)
		}

		one, err := Resolve(&p, 1, NoOverrides())
		if err != nil {
			t.Fatalf("Resolve(%s, 1) error = %v", p.Name, err)
		}
		if one.Lambda != p.LambdaBase || one.Delta != p.DeltaBase {
			t.Errorf("Resolve(%s, 1) = %v, want exactly base (%v, %v)", p.Name, one, p.LambdaBase, p.DeltaBase)
		}
	}
}

func TestResolve_StrengthLinearity(t *testing.T) {
	for _, p := range testPresets {
		p := p
		for s := 0.0; s <= 2.0; s += 0.05 {
			got, err := Resolve(&p, s, NoOverrides())
			if err != nil {
				t.Fatalf("Resolve(%s, %v) error = %v", p.Name, s, err)
			}
			wantL := 1.0 + (p.LambdaBase-1.0)*s
			wantD := 1.0 + (p.DeltaBase-1.0)*s
			if !approx(got.Lambda, wantL) || !approx(got.Delta, wantD) {
				t.Errorf("Resolve(%s, %.2f) = %v, want (%v, %v)", p.Name, s, got, wantL, wantD)
			}
		}
	}
}

func TestResolve_Custom(t *testing.T) {
	custom := models.Preset{Name: "Custom", LambdaBase: 1.0, DeltaBase: 1.0}

	for _, preset := range []*models.Preset{nil, &custom} {
		got, err := Resolve(preset, 1.0, NoOverrides())
		if err != nil {
			t.Fatalf("Resolve(custom) error = %v", err)
		}
		if !approx(got.Lambda, 1.2) || !approx(got.Delta, 1.3) {
			t.Errorf("Resolve(custom, 1.0) = %v, want (1.2, 1.3)", got)
		}

		half, _ := Resolve(preset, 0.5, NoOverrides())
		if !approx(half.Lambda, 1.1) || !approx(half.Delta, 1.15) {
			t.Errorf("Resolve(custom, 0.5) = %v, want (1.1, 1.15)", half)
		}
	}
}

func TestResolve_Overrides(t *testing.T) {
	p := testPresets[0]

	got, err := Resolve(&p, 2.0, Overrides{Lambda: 0.8, Delta: -1})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Lambda != 0.8 {
		t.Errorf("λ override ignored: got %v", got.Lambda)
	}
	if !approx(got.Delta, 1.20) {
		t.Errorf("δ should still be strength-scaled: got %v, want 1.20", got.Delta)
	}

	got, err = Resolve(nil, 0, Overrides{Lambda: -1, Delta: 1.7})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Lambda != 1.0 || got.Delta != 1.7 {
		t.Errorf("Resolve(custom, 0, δ=1.7) = %v, want (1.0, 1.7)", got)
	}
}

func TestResolve_Errors(t *testing.T) {
	p := testPresets[0]

	tests := []struct {
		name     string
		strength float64
		ov       Overrides
	}{
		{"negative strength", -0.5, NoOverrides()},
		{"lambda override too small", 1.0, Overrides{Lambda: 0.05, Delta: -1}},
		{"delta override too large", 1.0, Overrides{Lambda: -1, Delta: 2.01}},
		{"zero override is set and out of range", 1.0, Overrides{Lambda: 0, Delta: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(&p, tt.strength, tt.ov)
			if !models.IsConfigurationError(err) {
				t.Errorf("Resolve() error = %v, want configuration error", err)
			}
		})
	}
}

func TestResolve_NoClampingAtThisStage(t *testing.T) {
	p := models.Preset{Name: "Strong", LambdaBase: 1.8, DeltaBase: 1.9}
	got, err := Resolve(&p, 2.0, NoOverrides())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !approx(got.Lambda, 2.6) || !approx(got.Delta, 2.8) {
		t.Errorf("Resolve() = %v, want unclamped (2.6, 2.8)", got)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := models.NewControlConfig()
	cfg.Strength = 0.5
	p := testPresets[0]
	got, err := FromConfig(cfg, &p)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if !approx(got.Lambda, 1.025) || !approx(got.Delta, 1.05) {
		t.Errorf("FromConfig() = %v", got)
	}
}
