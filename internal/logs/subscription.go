package logs

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/charliek/horn/internal/domain"
)

// Subscription delivers matching log entries to one consumer
type Subscription struct {
	id      string
	ch      chan domain.LogEntry
	filter  *Filter
	closed  atomic.Bool
	dropped atomic.Uint64
}

func newSubscription(filter domain.LogFilter, bufferSize int) (*Subscription, error) {
	f, err := NewFilter(filter)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		id:     "sub-" + uuid.NewString(),
		ch:     make(chan domain.LogEntry, bufferSize),
		filter: f,
	}, nil
}

// ID returns the subscription ID
func (s *Subscription) ID() string {
	return s.id
}

// Dropped returns how many entries were discarded because the consumer was slow
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// send never blocks: a full channel drops the entry
func (s *Subscription) send(entry domain.LogEntry) {
	if s.closed.Load() || !s.filter.Matches(entry) {
		return
	}
	select {
	case s.ch <- entry:
	default:
		s.dropped.Add(1)
	}
}

func (s *Subscription) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// subscriptions is the set of live subscribers
type subscriptions struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int
}

func newSubscriptions(bufferSize int) *subscriptions {
	return &subscriptions{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
	}
}

func (m *subscriptions) add(filter domain.LogFilter) (*Subscription, error) {
	sub, err := newSubscription(filter, m.bufferSize)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.subs[sub.id] = sub
	m.mu.Unlock()
	return sub, nil
}

func (m *subscriptions) remove(id string) {
	m.mu.Lock()
	sub, ok := m.subs[id]
	delete(m.subs, id)
	m.mu.Unlock()

	if ok {
		sub.close()
	}
}

func (m *subscriptions) broadcast(entry domain.LogEntry) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subs {
		sub.send(entry)
	}
}

func (m *subscriptions) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *subscriptions) closeAll() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
