// Package signals delivers typed notifications to users over live push
// channels and a durable inbox.
package signals

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives serialized signals for one connected subscriber. Push must
// not block indefinitely; a sink that cannot accept the payload returns an
// error and is dropped by the registry.
type Sink interface {
	ID() string
	Push(payload []byte) error
	Close() error
}

// Registry tracks live subscribers per user. A user may hold any number of
// concurrent subscriptions, and one sink belongs to exactly one user.
type Registry struct {
	mu          sync.RWMutex
	userSinks   map[string]map[string]Sink
	sinkUser    map[string]string
	subscribers prometheus.Gauge
}

// NewRegistry returns an empty subscriber registry.
func NewRegistry() *Registry {
	return &Registry{
		userSinks: make(map[string]map[string]Sink),
		sinkUser:  make(map[string]string),
	}
}

// Instrument publishes the live subscriber count on g.
func (r *Registry) Instrument(g prometheus.Gauge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = g
	g.Set(float64(len(r.sinkUser)))
}

// Subscribe attaches a sink to a user.
func (r *Registry) Subscribe(userID string, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.sinkUser[sink.ID()]; taken {
		return fmt.Errorf("sink %s already subscribed", sink.ID())
	}
	if r.userSinks[userID] == nil {
		r.userSinks[userID] = make(map[string]Sink)
	}
	r.userSinks[userID][sink.ID()] = sink
	r.sinkUser[sink.ID()] = userID
	if r.subscribers != nil {
		r.subscribers.Inc()
	}
	return nil
}

// Unsubscribe detaches and closes a sink. Unknown sinks are ignored, so
// double disconnects are safe.
func (r *Registry) Unsubscribe(sinkID string) {
	r.mu.Lock()
	userID, ok := r.sinkUser[sinkID]
	var sink Sink
	if ok {
		sink = r.userSinks[userID][sinkID]
		delete(r.userSinks[userID], sinkID)
		if len(r.userSinks[userID]) == 0 {
			delete(r.userSinks, userID)
		}
		delete(r.sinkUser, sinkID)
		if r.subscribers != nil {
			r.subscribers.Dec()
		}
	}
	r.mu.Unlock()
	if sink != nil {
		_ = sink.Close()
	}
}

// Broadcast pushes a payload to every sink of a user and returns the number
// of sinks that accepted it. Failing sinks are removed.
func (r *Registry) Broadcast(userID string, payload []byte) int {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.userSinks[userID]))
	for _, s := range r.userSinks[userID] {
		sinks = append(sinks, s)
	}
	r.mu.RUnlock()

	delivered := 0
	var failed []string
	for _, s := range sinks {
		if err := s.Push(payload); err != nil {
			failed = append(failed, s.ID())
			continue
		}
		delivered++
	}
	for _, id := range failed {
		r.Unsubscribe(id)
	}
	return delivered
}

// Count returns the number of connected sinks across all users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinkUser)
}

// UserCount returns the number of sinks held by one user.
func (r *Registry) UserCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userSinks[userID])
}
