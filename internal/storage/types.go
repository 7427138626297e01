package storage

import (
	"errors"
	"time"

	"github.com/runnerr0/tabcycle/internal/history"
)

// ErrNotFound is returned when an instance or key does not exist.
var ErrNotFound = errors.New("not found")

// DefaultHistoryKey is the key the history blob is stored under.
const DefaultHistoryKey = "mruTabHistoryWithIndices"

// Instance is one page instance's last self-report in the registry.
type Instance struct {
	ID         string
	Record     history.TabRecord
	ReportedAt time.Time
	Stale      bool
}

// Stats holds aggregate statistics about a store.
type Stats struct {
	HistoryEntries   int
	HistoryUpdatedAt time.Time
	Instances        int
	LiveInstances    int
	// SchemaVersion is zero for stores without a schema.
	SchemaVersion int
}
