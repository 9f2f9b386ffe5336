package patch

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/nvandessel/grag/internal/host"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/reweight"
	"github.com/nvandessel/grag/internal/schedule"
)

// recordingAttention captures the keys it receives.
type recordingAttention struct {
	mu   sync.Mutex
	keys []host.Tensor
	err  error
}

func (r *recordingAttention) Compute(_ context.Context, q, k, v host.Tensor, _ host.CallOptions) (host.Tensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, k.Clone())
	if r.err != nil {
		return host.Tensor{}, r.err
	}
	return q, nil
}

type emptyModel struct{}

func (emptyModel) ID() string                    { return "empty" }
func (emptyModel) AttentionLayers() []host.Layer { return nil }

func buildSchedule(t *testing.T, layers int, lambda, delta float64) *schedule.Schedule {
	t.Helper()
	cfg := models.NewControlConfig()
	cfg.TotalLayers = layers
	cfg.LambdaOverride = lambda
	cfg.DeltaOverride = delta
	s, err := schedule.Build(cfg, nil)
	if err != nil {
		t.Fatalf("schedule.Build() error = %v", err)
	}
	return s
}

func sampleTensors() (q, k, v host.Tensor) {
	q, _ = reweight.FromSlice(1, 4, 2, []float32{1, 0, 0, 1, 1, 1, 0, 0})
	k, _ = reweight.FromSlice(1, 4, 2, []float32{5, 5, 1, 2, 3, 4, 5, 6})
	v, _ = reweight.FromSlice(1, 4, 1, []float32{1, 2, 3, 4})
	return q, k, v
}

func TestInstallRestore_RoundTrip(t *testing.T) {
	m := host.NewStaticModel("m", 4)
	before := host.Snapshot(m)
	var sink logging.Buffer
	c := NewController(nil, &sink)

	sess, err := c.Install(m, buildSchedule(t, 4, 1.2, 0.8))
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if sess.Layers() != 4 || sess.ID == "" {
		t.Errorf("session = %d layers, id %q", sess.Layers(), sess.ID)
	}
	if changed := host.Changed(m, before); len(changed) != 4 {
		t.Errorf("after Install, changed layers = %d, want 4", len(changed))
	}
	if _, ok := c.Active(m); !ok {
		t.Error("Active() should report the open session")
	}

	if err := c.Restore(m); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if changed := host.Changed(m, before); len(changed) != 0 {
		t.Errorf("after Restore, changed layers = %v", changed)
	}
	if _, ok := c.Active(m); ok {
		t.Error("Active() should be false after Restore")
	}

	if got := len(sink.Events("patch_installed")); got != 1 {
		t.Errorf("patch_installed events = %d, want 1", got)
	}
	restored := sink.Events("patch_restored")
	if len(restored) != 1 || restored[0].Fields["restored"] != 4 {
		t.Errorf("patch_restored events = %+v", restored)
	}
}

func TestRestore_Idempotent(t *testing.T) {
	m := host.NewStaticModel("m", 2)
	c := NewController(nil, nil)

	if err := c.Restore(m); err != nil {
		t.Errorf("Restore() with no session error = %v", err)
	}
	if _, err := c.Install(m, buildSchedule(t, 2, 1.1, 1.1)); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := c.Restore(m); err != nil {
		t.Fatalf("first Restore() error = %v", err)
	}
	if err := c.Restore(m); err != nil {
		t.Errorf("second Restore() error = %v", err)
	}
}

func TestInstall_Errors(t *testing.T) {
	c := NewController(nil, nil)
	sched := buildSchedule(t, 2, 1.1, 1.1)

	t.Run("zero layers", func(t *testing.T) {
		_, err := c.Install(emptyModel{}, sched)
		if !errors.Is(err, models.ErrNoAttentionLayers) || !models.IsPatchError(err) {
			t.Errorf("Install() error = %v, want PatchError(ErrNoAttentionLayers)", err)
		}
	})

	t.Run("double install", func(t *testing.T) {
		m := host.NewStaticModel("m", 2)
		if _, err := c.Install(m, sched); err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		defer c.Restore(m)

		snap := host.Snapshot(m)
		_, err := c.Install(m, sched)
		if !errors.Is(err, models.ErrSessionOpen) {
			t.Errorf("second Install() error = %v, want ErrSessionOpen", err)
		}
		if changed := host.Changed(m, snap); len(changed) != 0 {
			t.Errorf("failed Install must not touch the model, changed %v", changed)
		}
	})

	t.Run("layer already patched", func(t *testing.T) {
		shared := host.NewBlock("shared", &recordingAttention{})
		a := &listModel{id: "a", layers: []host.Layer{shared}}
		b := &listModel{id: "b", layers: []host.Layer{shared}}
		if _, err := c.Install(a, sched); err != nil {
			t.Fatalf("Install(a) error = %v", err)
		}
		defer c.Restore(a)

		if _, err := c.Install(b, sched); !errors.Is(err, models.ErrLayerPatched) {
			t.Errorf("Install(b) error = %v, want ErrLayerPatched", err)
		}
	})

	t.Run("nil schedule", func(t *testing.T) {
		if _, err := c.Install(host.NewStaticModel("n", 1), nil); !models.IsConfigurationError(err) {
			t.Errorf("Install(nil) error = %v, want configuration error", err)
		}
	})
}

type listModel struct {
	id     string
	layers []host.Layer
}

func (m *listModel) ID() string                    { return m.id }
func (m *listModel) AttentionLayers() []host.Layer { return m.layers }

func TestWrapper_ReweightsImageKeys(t *testing.T) {
	rec := &recordingAttention{}
	m := &listModel{id: "m", layers: []host.Layer{host.NewBlock("l0", rec)}}
	c := NewController(nil, nil)
	q, k, v := sampleTensors()

	err := c.WithSession(context.Background(), m, buildSchedule(t, 1, 1.5, 0.5), func(ctx context.Context, s *Session) error {
		_, err := m.layers[0].Attention().Compute(ctx, q, k, v, host.CallOptions{TextTokens: 1})
		return err
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}

	got := rec.keys[0]
	// Text token passes through.
	if got.Data[0] != 5 || got.Data[1] != 5 {
		t.Errorf("text token = %v, want [5 5]", got.Data[:2])
	}
	// Image tokens (1,2),(3,4),(5,6): mean (3,4).
	// λ·mean + δ·(k−mean) for the first image token: 4.5 - 1 = 3.5, 6 - 1 = 5.
	if math.Abs(float64(got.Data[2])-3.5) > 1e-5 || math.Abs(float64(got.Data[3])-5) > 1e-5 {
		t.Errorf("first image token = %v, want [3.5 5]", got.Data[2:4])
	}
	// Input tensor is untouched.
	if k.Data[2] != 1 {
		t.Error("wrapper mutated caller keys")
	}
}

func TestWrapper_NeutralPassesKeysThrough(t *testing.T) {
	rec := &recordingAttention{}
	m := &listModel{id: "m", layers: []host.Layer{host.NewBlock("l0", rec)}}
	c := NewController(nil, nil)
	q, k, v := sampleTensors()

	err := c.WithSession(context.Background(), m, buildSchedule(t, 1, 1.0, 1.0), func(ctx context.Context, s *Session) error {
		_, err := m.layers[0].Attention().Compute(ctx, q, k, v, host.CallOptions{TextTokens: 1})
		if s.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", s.Calls())
		}
		return err
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}
	for i := range k.Data {
		if rec.keys[0].Data[i] != k.Data[i] {
			t.Fatalf("neutral wrapper changed key %d", i)
		}
	}
}

func TestWrapper_EmptyImageSegmentIsConfigurationError(t *testing.T) {
	m := host.NewStaticModel("m", 1)
	c := NewController(nil, nil)
	q, k, v := sampleTensors()
	before := host.Snapshot(m)

	err := c.WithSession(context.Background(), m, buildSchedule(t, 1, 1.2, 1.2), func(ctx context.Context, s *Session) error {
		_, err := m.AttentionLayers()[0].Attention().Compute(ctx, q, k, v, host.CallOptions{TextTokens: 4})
		return err
	})
	if !models.IsConfigurationError(err) {
		t.Errorf("WithSession() error = %v, want configuration error", err)
	}
	if changed := host.Changed(m, before); len(changed) != 0 {
		t.Errorf("model left patched: %v", changed)
	}
}

func TestWrapper_DisabledPassesTextOnlyCalls(t *testing.T) {
	rec := &recordingAttention{}
	m := &listModel{id: "m", layers: []host.Layer{host.NewBlock("l0", rec)}}
	c := NewController(nil, nil)

	cfg := models.NewControlConfig()
	cfg.TotalLayers = 1
	cfg.Enabled = false
	sched, err := schedule.Build(cfg, nil)
	if err != nil {
		t.Fatalf("schedule.Build() error = %v", err)
	}

	q, k, v := sampleTensors()
	err = c.WithSession(context.Background(), m, sched, func(ctx context.Context, s *Session) error {
		_, err := m.AttentionLayers()[0].Attention().Compute(ctx, q, k, v, host.CallOptions{TextTokens: 4})
		return err
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v, want text-only call to pass through", err)
	}
	if len(rec.keys) != 1 {
		t.Fatalf("original attention called %d times, want 1", len(rec.keys))
	}
	for i, want := range k.Data {
		if rec.keys[0].Data[i] != want {
			t.Fatalf("key %d = %v, want %v unchanged", i, rec.keys[0].Data[i], want)
		}
	}
}

func TestWithSession_RestoresOnInjectedFailure(t *testing.T) {
	m := host.NewStaticModel("m", 6)
	before := host.Snapshot(m)
	c := NewController(nil, nil)
	q, k, v := sampleTensors()
	boom := errors.New("numerical failure")

	err := c.WithSession(context.Background(), m, buildSchedule(t, 6, 1.1, 1.2), func(ctx context.Context, s *Session) error {
		for step := 0; step < 3; step++ {
			for i, l := range m.AttentionLayers() {
				if step == 1 && i == 3 {
					return boom
				}
				if _, err := l.Attention().Compute(ctx, q, k, v, host.CallOptions{TextTokens: 1}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithSession() error = %v, want %v", err, boom)
	}
	if changed := host.Changed(m, before); len(changed) != 0 {
		t.Errorf("model left patched after failure: %v", changed)
	}

	// The model is clean, so the next run can install again.
	if _, err := c.Install(m, buildSchedule(t, 6, 1.1, 1.2)); err != nil {
		t.Errorf("Install() after failed run error = %v", err)
	}
	c.Restore(m)
}

func TestWithSession_RestoresOnPanic(t *testing.T) {
	m := host.NewStaticModel("m", 3)
	before := host.Snapshot(m)
	c := NewController(nil, nil)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = c.WithSession(context.Background(), m, buildSchedule(t, 3, 1.1, 1.1), func(context.Context, *Session) error {
			panic("sampler crashed")
		})
	}()

	if changed := host.Changed(m, before); len(changed) != 0 {
		t.Errorf("model left patched after panic: %v", changed)
	}
	if _, ok := c.Active(m); ok {
		t.Error("session left open after panic")
	}
}

func TestWithSession_Cancellation(t *testing.T) {
	m := host.NewStaticModel("m", 2)
	before := host.Snapshot(m)
	c := NewController(nil, nil)
	q, k, v := sampleTensors()

	ctx, cancel := context.WithCancel(context.Background())
	err := c.WithSession(ctx, m, buildSchedule(t, 2, 1.1, 1.1), func(ctx context.Context, s *Session) error {
		cancel()
		_, err := m.AttentionLayers()[0].Attention().Compute(ctx, q, k, v, host.CallOptions{TextTokens: 1})
		return err
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithSession() error = %v, want context.Canceled", err)
	}
	if changed := host.Changed(m, before); len(changed) != 0 {
		t.Errorf("model left patched after cancellation: %v", changed)
	}

	// Already-cancelled contexts never patch.
	err = c.WithSession(ctx, m, buildSchedule(t, 2, 1.1, 1.1), func(context.Context, *Session) error {
		t.Error("fn should not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithSession(cancelled) error = %v", err)
	}
}

func TestRestore_MissingLayerIsRestoreFailure(t *testing.T) {
	m := host.NewStaticModel("m", 3)
	var sink logging.Buffer
	c := NewController(nil, &sink)

	err := c.WithSession(context.Background(), m, buildSchedule(t, 3, 1.1, 1.1), func(context.Context, *Session) error {
		m.RemoveBlock(1)
		return nil
	})

	var rf *models.RestoreFailure
	if !errors.As(err, &rf) {
		t.Fatalf("WithSession() error = %v, want RestoreFailure", err)
	}
	if len(rf.Layers) != 1 || rf.Layers[0] != "m.blocks.1.attn" {
		t.Errorf("RestoreFailure.Layers = %v", rf.Layers)
	}
	// Remaining layers are restored and the session is closed.
	for _, l := range m.AttentionLayers() {
		if _, patched := l.Attention().(*attention); patched {
			t.Errorf("layer %s still patched", l.ID())
		}
	}
	if _, ok := c.Active(m); ok {
		t.Error("session left open after restore failure")
	}
	if len(sink.Events("restore_failed")) != 1 {
		t.Error("expected a restore_failed diagnostics record")
	}
}

func TestController_IndependentModels(t *testing.T) {
	c := NewController(nil, nil)
	a := host.NewStaticModel("a", 2)
	b := host.NewStaticModel("b", 2)
	sched := buildSchedule(t, 2, 1.1, 1.1)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, m := range []*host.StaticModel{a, b} {
		wg.Add(1)
		go func(m *host.StaticModel) {
			defer wg.Done()
			errs <- c.WithSession(context.Background(), m, sched, func(context.Context, *Session) error { return nil })
		}(m)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("WithSession() error = %v", err)
		}
	}
}

func TestController_SameIDModelsAreDistinctSessions(t *testing.T) {
	c := NewController(nil, nil)
	a := host.NewStaticModel("twin", 4)
	b := host.NewStaticModel("twin", 4)
	sched := buildSchedule(t, 4, 1.1, 1.1)
	beforeA := host.Snapshot(a)
	beforeB := host.Snapshot(b)

	if _, err := c.Install(a, sched); err != nil {
		t.Fatalf("Install(a) error = %v", err)
	}
	if _, err := c.Install(b, sched); err != nil {
		t.Fatalf("Install(b) error = %v, want an independent session", err)
	}

	if err := c.Restore(b); err != nil {
		t.Fatalf("Restore(b) error = %v", err)
	}
	if changed := host.Changed(b, beforeB); len(changed) != 0 {
		t.Errorf("b not restored: %v", changed)
	}
	if _, open := c.Active(a); !open {
		t.Fatal("restoring b must not close a's session")
	}
	for _, l := range a.AttentionLayers() {
		if _, patched := l.Attention().(*attention); !patched {
			t.Errorf("a's layer %s lost its wrapper when b was restored", l.ID())
		}
	}

	if err := c.Restore(a); err != nil {
		t.Fatalf("Restore(a) error = %v", err)
	}
	if changed := host.Changed(a, beforeA); len(changed) != 0 {
		t.Errorf("a not restored: %v", changed)
	}
}

func TestRestore_ReplacedAttentionIsRestoreFailure(t *testing.T) {
	m := host.NewStaticModel("m", 3)
	foreign := &recordingAttention{}
	var sink logging.Buffer
	c := NewController(nil, &sink)

	err := c.WithSession(context.Background(), m, buildSchedule(t, 3, 1.1, 1.1), func(context.Context, *Session) error {
		m.Blocks()[2].SetAttention(foreign)
		return nil
	})

	var rf *models.RestoreFailure
	if !errors.As(err, &rf) {
		t.Fatalf("WithSession() error = %v, want RestoreFailure", err)
	}
	if len(rf.Layers) != 1 || rf.Layers[0] != "m.blocks.2.attn" {
		t.Errorf("RestoreFailure.Layers = %v", rf.Layers)
	}
	if got := m.Blocks()[2].Attention(); got != host.Attention(foreign) {
		t.Error("Restore must not overwrite attention it did not install")
	}
	for _, b := range m.Blocks()[:2] {
		if _, patched := b.Attention().(*attention); patched {
			t.Errorf("layer %s still patched", b.ID())
		}
	}
	if _, ok := c.Active(m); ok {
		t.Error("session left open after restore failure")
	}
	if len(sink.Events("restore_failed")) != 1 {
		t.Error("expected a restore_failed diagnostics record")
	}
}
