// Package backend selects and opens the configured data store.
package backend

import "budgetwise/internal/store"

// Type identifies a data backend
type Type string

const (
	Memory Type = "memory"
	SQLite Type = "sqlite"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{Memory, SQLite}
}

// CleanupFunc releases resources held by an open store
type CleanupFunc func() error

// Result contains the opened store and optional cleanup function
type Result struct {
	Store   store.Store
	Cleanup CleanupFunc
}

// Close runs the cleanup function if one is set.
func (r *Result) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}
