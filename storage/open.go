package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Open returns the database for the named backend rooted at dataDir.
func Open(backend, dataDir string) (Database, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == BackendMemory {
		return NewMemDB(), nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	switch backend {
	case "", BackendLevelDB:
		return NewLevelDB(filepath.Join(dataDir, "state"))
	case BackendBolt:
		return NewBoltDB(filepath.Join(dataDir, "state.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
