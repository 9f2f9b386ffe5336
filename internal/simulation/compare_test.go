package simulation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/patch"
	"github.com/nvandessel/grag/internal/schedule"
	"github.com/nvandessel/grag/internal/simulation"
)

func TestCompare(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name     string
		disabled bool
		wantDev  bool
	}{
		{"patched", false, true},
		{"disabled", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			control := simulation.PresetControl("Paper: Balanced", 1.0, 4)
			control.Enabled = !tt.disabled
			sched, err := schedule.Build(control, &paperBalanced)
			if err != nil {
				t.Fatalf("schedule.Build() error = %v", err)
			}

			buf := &logging.Buffer{}
			cfg := simulation.DefaultConfig()
			cfg.Steps = 5

			c, err := simulation.Compare(context.Background(), patch.NewController(nil, buf), sched, cfg, 4)
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if c.Steps != 5 || c.Layers != 4 || c.Calls != 20 {
				t.Errorf("Compare() = %+v, want 5 steps over 4 layers", c)
			}
			if !c.Restored {
				t.Error("model not restored after patched run")
			}
			if len(c.Deviation) != 5 {
				t.Fatalf("len(Deviation) = %d, want 5", len(c.Deviation))
			}
			if got := c.FinalDeviation > 0; got != tt.wantDev {
				t.Errorf("FinalDeviation = %v, want deviation %v", c.FinalDeviation, tt.wantDev)
			}
			if len(buf.Events("patch_restored")) != 1 {
				t.Errorf("patch_restored events = %d, want 1", len(buf.Events("patch_restored")))
			}
		})
	}
}

func TestCompare_Invalid(t *testing.T) {
	sched, err := schedule.Build(simulation.PresetControl("Paper: Balanced", 1.0, 4), &paperBalanced)
	if err != nil {
		t.Fatalf("schedule.Build() error = %v", err)
	}
	ctrl := patch.NewController(nil, &logging.Buffer{})

	if _, err := simulation.Compare(context.Background(), ctrl, sched, simulation.DefaultConfig(), 0); err == nil {
		t.Error("expected error for zero layers")
	}

	cfg := simulation.DefaultConfig()
	cfg.Steps = 0
	if _, err := simulation.Compare(context.Background(), ctrl, sched, cfg, 4); err == nil {
		t.Error("expected error for invalid sampler config")
	}
}

func TestCompare_ConcurrentSharedController(t *testing.T) {
	sched, err := schedule.Build(simulation.PresetControl("Paper: Balanced", 1.0, 4), &paperBalanced)
	if err != nil {
		t.Fatalf("schedule.Build() error = %v", err)
	}
	ctrl := patch.NewController(nil, nil)
	cfg := simulation.DefaultConfig()
	cfg.Steps = 2

	const runs = 16
	var wg sync.WaitGroup
	errs := make(chan error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := simulation.Compare(context.Background(), ctrl, sched, cfg, 4)
			if err == nil && !c.Restored {
				err = errors.New("model not restored")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Compare() error = %v", err)
		}
	}
}
