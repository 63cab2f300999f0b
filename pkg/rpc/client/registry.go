package client

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/oncrpc/internal/logger"
)

// Registry tracks open connections so they can be closed together.
//
// Entries are held until they are deregistered or closed through CloseAll.
// A Conn obtained from Manager.Dial deregisters itself when closed.
//
// Example usage:
//
//	reg := NewRegistry()
//	id := reg.Register(conn)
//	...
//	closed := reg.CloseAll()
type Registry struct {
	mu      sync.Mutex
	entries map[string]io.Closer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]io.Closer)}
}

// Register adds c and returns its id. Values with an ID() string method
// (such as *Conn) are keyed by it; others get a fresh uuid.
func (r *Registry) Register(c io.Closer) string {
	var id string
	if withID, ok := c.(interface{ ID() string }); ok {
		id = withID.ID()
	}
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[id] = c
	return id
}

// Deregister removes the entry with the given id without closing it.
// It reports whether the id was registered.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll closes every registered entry and empties the registry.
// Entries that were already closed elsewhere (Close returns net.ErrClosed)
// are skipped silently. Other close failures are logged and skipped. It
// returns the number of entries closed successfully.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]io.Closer)
	r.mu.Unlock()

	// Closing outside the lock lets a closer deregister itself.
	closed, stale := 0, 0
	for id, c := range entries {
		err := c.Close()
		switch {
		case err == nil:
			closed++
		case errors.Is(err, net.ErrClosed):
			stale++
		default:
			logger.Warn("close failed", logger.ConnID(id), logger.Err(err))
		}
	}

	logger.Debug("closed registered connections",
		logger.Count(closed), "stale", stale, "failed", len(entries)-closed-stale)
	return closed
}
