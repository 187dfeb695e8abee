// Package notify fans newly ingested trades out to connected viewers.
// Delivery is best-effort: a subscriber that cannot keep up loses events,
// and there is no replay beyond the snapshot a transport sends on connect.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/trade"
)

// Event is one live update: a newly ingested trade, tagged with its account
// and whether that account is the designated master.
type Event struct {
	Trade   trade.Trade `json:"trade"`
	Account string      `json:"account"`
	Master  bool        `json:"is_master"`
}

// Subscription is one viewer's feed. Close it when the viewer disconnects;
// the registry also closes C when it drops a slow consumer.
type Subscription struct {
	C <-chan Event

	n    *Notifier
	ch   chan Event
	once sync.Once
}

// Close removes the subscription from the registry.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.n.remove(s)
		close(s.ch)
	})
}

// Notifier owns the subscriber registry. It is an explicit object, not
// package state, so transports can be wired and torn down independently.
type Notifier struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	logger *zap.Logger
}

// New creates an empty Notifier.
func New(logger *zap.Logger) *Notifier {
	return &Notifier{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

const defaultBuffer = 64

// Subscribe registers a viewer and returns its feed. buffer <= 0 uses the
// default.
func (n *Notifier) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, n: n}

	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

// Publish delivers the event to every subscriber without blocking. A
// subscriber whose buffer is full is dropped from the registry; the viewer
// reconnects and gets a fresh snapshot.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	var dropped []*Subscription
	for sub := range n.subs {
		select {
		case sub.ch <- ev:
		default:
			dropped = append(dropped, sub)
			delete(n.subs, sub)
		}
	}
	n.mu.Unlock()

	for _, sub := range dropped {
		sub.once.Do(func() { close(sub.ch) })
		n.logger.Warn("dropped slow live-feed subscriber")
	}
}

// Subscribers returns the current registry size.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *Notifier) remove(sub *Subscription) {
	n.mu.Lock()
	delete(n.subs, sub)
	n.mu.Unlock()
}
