// Package patch installs the reweighted attention into a host model for the
// duration of one sampling run and restores the original attention on every
// exit path.
//
// A controller holds at most one session per model. Install saves each
// layer's attention and replaces it with a wrapper; Restore puts the saved
// attention back and closes the session. WithSession brackets a run so the
// restore happens on success, error, cancellation and panic alike.
package patch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/grag/internal/host"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/schedule"
)

// Controller manages patch sessions keyed by model instance. Models with
// the same ID are still distinct sessions, so host.Model implementations
// must be comparable (usually a pointer).
// It is safe for concurrent use, but two runs on the same model must be
// serialized by the caller; a second Install fails instead of waiting.
type Controller struct {
	mu       sync.Mutex
	sessions map[host.Model]*Session

	logger *slog.Logger
	sink   logging.Sink
}

// NewController returns a controller. A nil logger discards operational
// logs; a nil sink drops diagnostics.
func NewController(logger *slog.Logger, sink logging.Sink) *Controller {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Controller{
		sessions: make(map[host.Model]*Session),
		logger:   logger,
		sink:     sink,
	}
}

// Install opens a session on model and replaces every attention layer with
// the reweighting wrapper bound to sched.
//
// Install fails with a PatchError, leaving the model untouched, when the
// model has no attention layers, when a session is already open for it, or
// when one of its layers already carries this controller's wrapper.
func (c *Controller) Install(model host.Model, sched *schedule.Schedule) (*Session, error) {
	if sched == nil {
		return nil, models.NewConfigurationError("schedule", nil, "is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := model.ID()
	if _, open := c.sessions[model]; open {
		return nil, &models.PatchError{Model: id, Err: models.ErrSessionOpen}
	}

	layers := model.AttentionLayers()
	if len(layers) == 0 {
		return nil, &models.PatchError{Model: id, Err: models.ErrNoAttentionLayers}
	}
	for _, l := range layers {
		if w, ok := l.Attention().(*attention); ok && w.owner == c {
			return nil, &models.PatchError{Model: id, Err: fmt.Errorf("%s: %w", l.ID(), models.ErrLayerPatched)}
		}
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Model:     id,
		StartedAt: time.Now(),
		Schedule:  sched,
		saved:     make([]saved, 0, len(layers)),
	}
	for i, l := range layers {
		w := &attention{
			owner:    c,
			session:  sess,
			index:    i,
			layerID:  l.ID(),
			original: l.Attention(),
		}
		sess.saved = append(sess.saved, saved{index: i, layerID: l.ID(), original: w.original, wrapper: w})
	}
	// Swap only after every original is saved.
	for i, l := range layers {
		l.SetAttention(sess.saved[i].wrapper)
	}
	c.sessions[model] = sess

	if len(layers) != sched.LayerCount() {
		c.logger.Warn("layer count differs from schedule",
			"model", id, "attention_layers", len(layers), "schedule_layers", sched.LayerCount())
	}
	c.logger.Debug("patch installed", "model", id, "session", sess.ID, "layers", len(layers))
	c.record("patch_installed", map[string]any{
		"model":   id,
		"session": sess.ID,
		"layers":  len(layers),
		"mode":    string(sched.Mode),
		"lambda":  sched.Base.Lambda,
		"delta":   sched.Base.Delta,
	})
	return sess, nil
}

// Restore reinstates every saved attention for model and closes its
// session. It is a no-op when no session is open.
//
// A layer is put back only while it still carries this session's wrapper.
// Layers that disappeared from the model, or whose attention was replaced
// during the run, are left alone; Restore still restores the rest, closes
// the session and returns a RestoreFailure naming them. The model must then
// be treated as potentially contaminated.
func (c *Controller) Restore(model host.Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := model.ID()
	sess, open := c.sessions[model]
	if !open {
		return nil
	}
	delete(c.sessions, model)

	current := make(map[string]host.Layer)
	for _, l := range model.AttentionLayers() {
		current[l.ID()] = l
	}

	var missing, replaced []string
	restored := 0
	for _, sv := range sess.saved {
		l, ok := current[sv.layerID]
		if !ok {
			missing = append(missing, sv.layerID)
			continue
		}
		if w, ok := l.Attention().(*attention); !ok || w != sv.wrapper {
			replaced = append(replaced, sv.layerID)
			continue
		}
		l.SetAttention(sv.original)
		restored++
	}

	fields := map[string]any{
		"model":    id,
		"session":  sess.ID,
		"restored": restored,
		"calls":    sess.Calls(),
		"duration": time.Since(sess.StartedAt).String(),
	}
	if len(missing) > 0 || len(replaced) > 0 {
		reason := "layers no longer present in model"
		if len(missing) > 0 {
			fields["missing"] = missing
		}
		if len(replaced) > 0 {
			fields["replaced"] = replaced
			reason = "layer attention replaced during run"
			if len(missing) > 0 {
				reason = "layers removed or their attention replaced during run"
			}
		}
		c.record("restore_failed", fields)
		c.logger.Error("model may be contaminated: attention layers could not be restored",
			"model", id, "session", sess.ID, "missing", missing, "replaced", replaced)
		return &models.RestoreFailure{
			Model:  id,
			Layers: append(missing, replaced...),
			Reason: reason,
		}
	}
	c.record("patch_restored", fields)
	c.logger.Debug("patch restored", "model", id, "session", sess.ID, "layers", restored)
	return nil
}

// Active returns the open session for model, if any.
func (c *Controller) Active(model host.Model) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[model]
	return s, ok
}

// WithSession installs sched on model, runs fn, and restores the model on
// every exit path. A restore failure is joined with fn's error. Panics in fn
// propagate after the model has been restored.
func (c *Controller) WithSession(ctx context.Context, model host.Model, sched *schedule.Schedule, fn func(ctx context.Context, s *Session) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess, err := c.Install(model, sched)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := c.Restore(model); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn(ctx, sess)
}

func (c *Controller) record(event string, fields map[string]any) {
	if c.sink != nil {
		c.sink.Record(event, fields)
	}
}
