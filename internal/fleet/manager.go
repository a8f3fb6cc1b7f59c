// Package fleet tracks the shop's printer fleet. Printer statuses feed
// the dashboard and the capacity side of market pricing.
package fleet

import (
	"fmt"
	"sync"
	"time"
)

// State is a printer's lifecycle state as reported by its status API.
type State string

const (
	StateIdle     State = "idle"
	StatePrinting State = "printing"
	StatePaused   State = "paused"
	StateOffline  State = "offline"
)

// PrinterStatus is a point-in-time view of one printer.
type PrinterStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model,omitempty"`
	State     State     `json:"state"`
	Job       string    `json:"job,omitempty"`
	Progress  float64   `json:"progress,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager holds the current status of every configured printer and
// notifies subscribers when anything changes.
type Manager struct {
	mu       sync.RWMutex
	order    []string
	printers map[string]PrinterStatus
	subs     map[chan []PrinterStatus]struct{}
}

// NewManager creates a manager with every printer starting offline until
// the first successful probe.
func NewManager(configs []PrinterConfig) *Manager {
	m := &Manager{
		printers: make(map[string]PrinterStatus, len(configs)),
		subs:     make(map[chan []PrinterStatus]struct{}),
	}
	for _, cfg := range configs {
		m.order = append(m.order, cfg.ID)
		m.printers[cfg.ID] = PrinterStatus{
			ID:    cfg.ID,
			Name:  cfg.Name,
			Model: cfg.Model,
			State: StateOffline,
		}
	}
	return m
}

// SetStatus records a printer's latest state and notifies subscribers.
func (m *Manager) SetStatus(id string, state State, job string, progress float64) error {
	m.mu.Lock()
	current, ok := m.printers[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown printer %q", id)
	}

	current.State = state
	current.Job = job
	current.Progress = progress
	current.UpdatedAt = time.Now().UTC()
	m.printers[id] = current

	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snapshot)
	return nil
}

// Snapshot returns all printer statuses in configuration order.
func (m *Manager) Snapshot() []PrinterStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Counts returns the fleet size and how many printers are printing.
func (m *Manager) Counts() (total, printing int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total = len(m.order)
	for _, status := range m.printers {
		if status.State == StatePrinting {
			printing++
		}
	}
	return total, printing
}

// Subscribe returns a channel receiving fleet snapshots on every status
// change, plus a cancel function. Slow consumers miss intermediate
// snapshots rather than blocking the poller.
func (m *Manager) Subscribe() (<-chan []PrinterStatus, func()) {
	ch := make(chan []PrinterStatus, 1)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subs, ch)
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *Manager) snapshotLocked() []PrinterStatus {
	snapshot := make([]PrinterStatus, 0, len(m.order))
	for _, id := range m.order {
		snapshot = append(snapshot, m.printers[id])
	}
	return snapshot
}

func (m *Manager) publish(snapshot []PrinterStatus) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- snapshot:
		default:
			// Drop: the subscriber still holds an unread snapshot.
		}
	}
}
