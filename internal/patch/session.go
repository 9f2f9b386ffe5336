package patch

import (
	"sync/atomic"
	"time"

	"github.com/nvandessel/grag/internal/host"
	"github.com/nvandessel/grag/internal/schedule"
)

// Session is the handle for one open patch: originals saved, wrappers
// installed. It exists only between Install and Restore.
type Session struct {
	ID        string
	Model     string
	StartedAt time.Time
	Schedule  *schedule.Schedule

	saved []saved
	calls atomic.Int64
}

type saved struct {
	index    int
	layerID  string
	original host.Attention
	wrapper  *attention
}

// Layers returns the number of patched layers.
func (s *Session) Layers() int {
	return len(s.saved)
}

// Calls returns the number of reweighted attention calls so far.
func (s *Session) Calls() int64 {
	return s.calls.Load()
}

// LayerIDs returns the patched layer IDs in depth order.
func (s *Session) LayerIDs() []string {
	out := make([]string, len(s.saved))
	for i, sv := range s.saved {
		out[i] = sv.layerID
	}
	return out
}
