package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveCmd(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name       string
		args       []string
		wantLambda float64
		wantDelta  float64
		wantNeut   bool
	}{
		{"preset", []string{"-p", "Paper: Balanced"}, 1.05, 1.10, false},
		{"half strength by key", []string{"-p", "paper_balanced", "-s", "0.5"}, 1.025, 1.05, false},
		{"zero strength", []string{"-p", "Paper: Balanced", "-s", "0"}, 1.0, 1.0, true},
		{"delta override", []string{"-p", "Paper: Balanced", "--delta", "1.3"}, 1.05, 1.3, false},
		{"custom", []string{"-p", "Custom", "-s", "0.5"}, 1.1, 1.15, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, append([]string{"resolve", "--json"}, tt.args...)...)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			var got struct {
				Lambda  float64 `json:"lambda"`
				Delta   float64 `json:"delta"`
				Neutral bool    `json:"neutral"`
			}
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("invalid JSON %q: %v", out, err)
			}
			if !approx(got.Lambda, tt.wantLambda) || !approx(got.Delta, tt.wantDelta) {
				t.Errorf("pair = (%v, %v), want (%v, %v)", got.Lambda, got.Delta, tt.wantLambda, tt.wantDelta)
			}
			if got.Neutral != tt.wantNeut {
				t.Errorf("neutral = %v, want %v", got.Neutral, tt.wantNeut)
			}
		})
	}
}

func TestResolveCmd_Text(t *testing.T) {
	isolateHome(t)

	out, err := runCmd(t, "resolve", "-p", "v2.2.1: Balanced")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, want := range []string{"Preset:   v2.2.1: Balanced", "δ base:   1.5000", "warning:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestResolveCmd_Errors(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown preset", []string{"-p", "Nope"}},
		{"negative strength", []string{"-s", "-1"}},
		{"override out of range", []string{"--lambda", "2.5"}},
		{"unknown mode", []string{"--mode", "wizard"}},
		{"missing run file", []string{"-f", "does-not-exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, append([]string{"resolve"}, tt.args...)...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestScheduleCmd_Expert(t *testing.T) {
	isolateHome(t)

	out, err := runCmd(t, "schedule", "--mode", "expert", "--layers", "6",
		"--strategy", "detail_enhancer", "--adaptive", "smooth_transition",
		"--tier-preset", "paper_stable", "--tiers", "--steps", "4")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for _, want := range []string{"Mode: expert", "LAYER", "Adaptive schedule: smooth_transition", "m(t)", "EDGE", "4096"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScheduleCmd_SimpleHasNoTiers(t *testing.T) {
	isolateHome(t)

	out, err := runCmd(t, "schedule", "-p", "Paper: Balanced", "--layers", "3", "--tiers")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !strings.Contains(out, "not active") {
		t.Errorf("expected tiers-inactive note:\n%s", out)
	}
	if strings.Contains(out, "m(t)") {
		t.Error("simple mode should not print multipliers")
	}
}

func TestScheduleCmd_RunFile(t *testing.T) {
	isolateHome(t)

	path := filepath.Join(t.TempDir(), "run.yaml")
	run := `mode: simple
preset: "Paper: Subtle"
strength: 1.0
total_layers: 4
`
	if err := os.WriteFile(path, []byte(run), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "schedule", "--json", "-f", path, "--steps", "3")
	if err != nil {
		t.Fatalf("schedule -f: %v", err)
	}
	var got struct {
		Summary struct {
			Preset  string `json:"preset"`
			Layers  int    `json:"layers"`
			Enabled bool   `json:"enabled"`
		} `json:"summary"`
		Layers []struct {
			Lambda float64 `json:"lambda"`
			Delta  float64 `json:"delta"`
		} `json:"layers"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Summary.Preset != "Paper: Subtle" || got.Summary.Layers != 4 || !got.Summary.Enabled {
		t.Errorf("summary = %+v", got.Summary)
	}
	if len(got.Layers) != 4 || !approx(got.Layers[3].Delta, 1.05) {
		t.Errorf("layers = %+v", got.Layers)
	}
}

func TestScheduleCmd_RunFileInvalid(t *testing.T) {
	isolateHome(t)

	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("mode: simple\nstrength: -2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "schedule", "-f", path); err == nil {
		t.Error("expected validation error")
	}
}
