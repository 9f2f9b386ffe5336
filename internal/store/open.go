package store

import (
	"log/slog"

	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/pathutil"
)

// Open returns the preset store for backend rooted at dir. When the backend
// cannot be opened it logs a warning and falls back to the in-memory
// fallback catalog. The returned Backend is the one actually in use.
func Open(backend constants.Backend, dir string, logger *slog.Logger) (PresetStore, constants.Backend) {
	var (
		s   PresetStore
		err error
	)
	switch backend {
	case constants.BackendMemory:
		return NewInMemoryPresetStore(nil), constants.BackendMemory
	case constants.BackendSQLite:
		s, err = NewSQLitePresetStore(dir)
	default:
		backend = constants.BackendFile
		s, err = NewFilePresetStore(dir)
	}
	if err != nil {
		if logger != nil {
			logger.Warn("preset store unavailable, using fallback catalog",
				"backend", backend, "dir", pathutil.Redact(dir), "error", err)
		}
		return NewInMemoryPresetStore(nil), constants.BackendMemory
	}
	return s, backend
}
