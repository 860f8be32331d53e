// Package logs keeps the supervisor's recent log history in memory and fans
// new entries out to live subscribers (API streams, the foreground printer).
package logs

import (
	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/domain"
)

// ManagerConfig holds configuration for the log manager
type ManagerConfig struct {
	BufferSize         int // Number of entries to keep in ring buffer
	SubscriptionBuffer int // Buffer size for subscription channels
}

// DefaultManagerConfig returns the default configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BufferSize:         constants.DefaultLogBufferSize,
		SubscriptionBuffer: constants.DefaultSubscriptionBuffer,
	}
}

// Manager manages log storage and subscriptions
type Manager struct {
	buffer *RingBuffer
	subs   *subscriptions
}

// NewManager creates a new log manager
func NewManager(config ManagerConfig) *Manager {
	defaults := DefaultManagerConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.SubscriptionBuffer <= 0 {
		config.SubscriptionBuffer = defaults.SubscriptionBuffer
	}

	return &Manager{
		buffer: NewRingBuffer(config.BufferSize),
		subs:   newSubscriptions(config.SubscriptionBuffer),
	}
}

// Write stores an entry and broadcasts it to subscribers
func (m *Manager) Write(entry domain.LogEntry) {
	m.buffer.Write(entry)
	m.subs.broadcast(entry)
}

// QueryLast returns the last n entries matching the filter and the total
// number of matches
func (m *Manager) QueryLast(filter domain.LogFilter, n int) ([]domain.LogEntry, int, error) {
	return FilterEntries(m.buffer.Read(), filter, n)
}

// Subscribe creates a subscription for log entries matching the filter
func (m *Manager) Subscribe(filter domain.LogFilter) (string, <-chan domain.LogEntry, error) {
	sub, err := m.subs.add(filter)
	if err != nil {
		return "", nil, err
	}
	return sub.id, sub.ch, nil
}

// Unsubscribe removes a subscription and closes its channel
func (m *Manager) Unsubscribe(id string) {
	m.subs.remove(id)
}

// Stats returns statistics about the log manager
func (m *Manager) Stats() domain.LogStats {
	return domain.LogStats{
		TotalEntries: m.buffer.Count(),
		BufferSize:   m.buffer.Capacity(),
		Subscribers:  m.subs.count(),
	}
}

// Close closes all subscriptions
func (m *Manager) Close() {
	m.subs.closeAll()
}
