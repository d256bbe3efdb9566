package session

import (
	"log/slog"
	"sync"
)

// Manager hands out one Controller per user.
type Manager struct {
	store Store
	opts  Options
	log   *slog.Logger

	mu          sync.Mutex
	controllers map[int]*Controller
}

// NewManager creates a Manager. Every controller shares store and opts.
func NewManager(store Store, opts Options, log *slog.Logger) *Manager {
	return &Manager{
		store:       store,
		opts:        opts,
		log:         log,
		controllers: map[int]*Controller{},
	}
}

// For returns the user's controller, creating it on first use.
func (m *Manager) For(userID int) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[userID]
	if !ok {
		c = New(m.store, userID, m.opts, m.log)
		m.controllers[userID] = c
	}
	return c
}

// Store returns the backing store the controllers use.
func (m *Manager) Store() Store {
	return m.store
}

// Wait blocks until every controller's background writes have settled.
func (m *Manager) Wait() {
	m.mu.Lock()
	cs := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		cs = append(cs, c)
	}
	m.mu.Unlock()
	for _, c := range cs {
		c.Wait()
	}
}
