package service

import "sync"

// ConnectivityMonitor tracks whether the browser believes it is online.
// It is purely observational: it never changes the reconciliation state.
type ConnectivityMonitor struct {
	mu     sync.RWMutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

// NewConnectivityMonitor starts online, matching a freshly loaded page.
func NewConnectivityMonitor() *ConnectivityMonitor {
	return &ConnectivityMonitor{online: true, subs: make(map[int]func(bool))}
}

func (m *ConnectivityMonitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records a platform online/offline signal. Subscribers are notified only
// when the value actually changes.
func (m *ConnectivityMonitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Subscribe registers fn for changes. The returned func releases it.
func (m *ConnectivityMonitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}
