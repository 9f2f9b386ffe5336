package models

import (
	"errors"
	"math"
	"testing"
)

func TestModulationPair_Clamp(t *testing.T) {
	tests := []struct {
		name string
		in   ModulationPair
		want ModulationPair
	}{
		{"in range untouched", ModulationPair{1.05, 1.10}, ModulationPair{1.05, 1.10}},
		{"below minimum", ModulationPair{0.01, 0.05}, ModulationPair{0.1, 0.1}},
		{"above maximum", ModulationPair{2.5, 3.0}, ModulationPair{2.0, 2.0}},
		{"NaN goes neutral", ModulationPair{math.NaN(), 1.2}, ModulationPair{1.0, 1.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamp(); got != tt.want {
				t.Errorf("Clamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModulationPair_IsNeutral(t *testing.T) {
	if !Neutral().IsNeutral() {
		t.Error("Neutral() should be neutral")
	}
	if (ModulationPair{1.0, 1.0000001}).IsNeutral() {
		t.Error("near-neutral pair should not be reported neutral")
	}
}

func TestModulationPair_Validate(t *testing.T) {
	if err := (ModulationPair{1.0, 1.5}).Validate("pair"); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	err := (ModulationPair{1.0, 2.5}).Validate("pair")
	if err == nil {
		t.Fatal("Validate() expected error for δ=2.5")
	}
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
	if ce.Field != "pair.delta" {
		t.Errorf("Field = %q, want pair.delta", ce.Field)
	}
}

func TestModulationPair_InStableRange(t *testing.T) {
	if !(ModulationPair{1.05, 1.10}).InStableRange() {
		t.Error("paper balanced values should be in the stable range")
	}
	if (ModulationPair{1.0, 1.5}).InStableRange() {
		t.Error("δ=1.5 should be outside the stable range")
	}
}

func TestPresetKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Paper: Balanced", "paper:_balanced"},
		{"My Preset", "my_preset"},
		{"clean-room gentle", "clean_room_gentle"},
		{"  Custom ", "custom"},
	}

	for _, tt := range tests {
		if got := PresetKey(tt.in); got != tt.want {
			t.Errorf("PresetKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		preset  Preset
		wantErr bool
	}{
		{"valid", Preset{Name: "ok", LambdaBase: 1.0, DeltaBase: 1.1, StrengthDefault: 1.0}, false},
		{"missing name", Preset{LambdaBase: 1.0, DeltaBase: 1.1}, true},
		{"lambda out of range", Preset{Name: "bad", LambdaBase: 0.05, DeltaBase: 1.1}, true},
		{"negative strength", Preset{Name: "bad", LambdaBase: 1.0, DeltaBase: 1.0, StrengthDefault: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.preset.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
