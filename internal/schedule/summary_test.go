package schedule

import (
	"strings"
	"testing"

	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/timestep"
)

func TestSummarize(t *testing.T) {
	adaptive := timestep.DefaultConfig(models.ScheduleAggressive)
	cfg := models.NewControlConfig()
	cfg.Mode = models.ModeExpert
	cfg.TotalLayers = 10
	cfg.Adaptive = &adaptive

	s, err := Build(cfg, paperBalanced())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	sum := s.Summarize()

	if sum.Layers != 10 {
		t.Errorf("Layers = %d, want 10", sum.Layers)
	}
	if sum.Adaptive != string(models.ScheduleAggressive) {
		t.Errorf("Adaptive = %q", sum.Adaptive)
	}
	if sum.LayerMin != sum.LayerMax {
		t.Errorf("flat schedule should have equal min and max, got %v / %v", sum.LayerMin, sum.LayerMax)
	}
	// 1.10 * 1.8 leaves the stable range.
	if len(sum.Advisories) == 0 {
		t.Error("expected a stable-range advisory")
	}
}

func TestAdvisories(t *testing.T) {
	tests := []struct {
		name     string
		preset   *models.Preset
		strength float64
		want     []string
	}{
		{"stable preset", paperBalanced(), 1.0, nil},
		{"strength above max", paperBalanced(), 2.5, []string{"strength 2.50 exceeds 2.0"}},
		{"custom default leaves stable range", nil, 1.0, []string{"base", "resolved values"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.NewControlConfig()
			cfg.Strength = tt.strength
			cfg.TotalLayers = 4
			s, err := Build(cfg, tt.preset)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			got := strings.Join(s.Advisories(), "\n")
			if tt.want == nil && got != "" {
				t.Errorf("Advisories() = %q, want none", got)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Advisories() = %q, want substring %q", got, w)
				}
			}
		})
	}
}

func TestMultipliers(t *testing.T) {
	cfg := models.NewControlConfig()
	s, _ := Build(cfg, nil)
	for _, m := range s.Multipliers(4) {
		if m != 1.0 {
			t.Errorf("inactive adaptive multiplier = %v, want 1.0", m)
		}
	}
}
