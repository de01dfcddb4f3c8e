package radio

import (
	"fmt"
	"sync"
)

// Manager holds at most one live device connection, keyed by address
// and transport. Connecting to a new address closes the old link
// first, so the device never sees two competing client sessions.
type Manager struct {
	mu        sync.Mutex
	radio     *Radio
	address   string
	transport Transport

	dial func(string, Transport) (*Radio, error)
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{dial: Dial}
}

// Connect opens a connection to the given address, replacing any
// existing one.
func (m *Manager) Connect(address string, transport Transport) (*Radio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.radio != nil {
		m.radio.Close()
		m.radio = nil
	}

	r, err := m.dial(address, transport)
	if err != nil {
		return nil, err
	}

	m.radio = r
	m.address = address
	m.transport = transport
	return r, nil
}

// Radio returns the live connection, or an error if none is open.
func (m *Manager) Radio() (*Radio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.radio == nil {
		return nil, fmt.Errorf("not connected to a device")
	}
	return m.radio, nil
}

// Address reports the cached connection target, if any.
func (m *Manager) Address() (string, Transport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address, m.transport, m.radio != nil
}

// Close shuts down the cached connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.radio == nil {
		return nil
	}
	err := m.radio.Close()
	m.radio = nil
	return err
}
