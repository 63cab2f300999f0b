package client

import (
	"context"
)

// Manager dials connections with shared Options and keeps them in a
// Registry until they are closed.
type Manager struct {
	opts     Options
	registry *Registry
}

// NewManager creates a Manager whose connections use opts.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts,
		registry: NewRegistry(),
	}
}

// Options returns the options used for new connections.
func (m *Manager) Options() Options { return m.opts }

// Dial connects to host:port and registers the connection. Closing the
// returned Conn removes it from the manager.
func (m *Manager) Dial(ctx context.Context, host string, port int) (*Conn, error) {
	c, err := Dial(ctx, host, port, m.opts)
	if err != nil {
		return nil, err
	}

	c.onClose = func(c *Conn) { m.registry.Deregister(c.ID()) }
	m.registry.Register(c)
	return c, nil
}

// Len returns the number of open connections.
func (m *Manager) Len() int { return m.registry.Len() }

// CloseAll closes every open connection and returns how many closed
// cleanly.
func (m *Manager) CloseAll() int { return m.registry.CloseAll() }
