package serve

import "errors"

// ErrRunNotFound is returned by GetRun for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// Store persists generation runs for historical queries.
type Store interface {
	// Init creates tables if they don't exist.
	Init() error

	// Close closes the store.
	Close() error

	// InsertRun records a finished run.
	InsertRun(r RunRecord) error

	// GetRun returns one run by ID.
	GetRun(id string) (*RunRecord, error)

	// ListRuns returns recent runs, newest first.
	ListRuns(limit int) ([]RunRecord, error)
}
