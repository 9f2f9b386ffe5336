package constants

// Backend identifies which preset store implementation is used.
type Backend string

const (
	// BackendMemory keeps only the built-in fallback catalog in memory.
	BackendMemory Backend = "memory"

	// BackendFile reads the extended YAML catalog and user presets from disk.
	BackendFile Backend = "file"

	// BackendSQLite stores presets in a SQLite database.
	BackendSQLite Backend = "sqlite"
)

// Valid returns true if the backend is a recognized value.
func (b Backend) Valid() bool {
	switch b {
	case BackendMemory, BackendFile, BackendSQLite:
		return true
	}
	return false
}

// String returns the string representation of the backend.
func (b Backend) String() string {
	return string(b)
}
