package events

import (
	"context"
	"sync"

	"github.com/okatashev/nimbus/internal/logging"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this loses events; sticky events exist so the
// terminal state can still be recovered afterwards.
const subscriberBuffer = 64

type stickyKey struct {
	kind    Kind
	account string
	path    string
}

// Subscription is one registered observer. Events arrive on C in the order
// they were published. Close the subscription with Bus.Unsubscribe when the
// observing component detaches.
type Subscription struct {
	C chan Event

	kinds map[Kind]struct{}
	id    uint64
}

func (s *Subscription) wants(k Kind) bool {
	_, ok := s.kinds[k]
	return ok
}

// Bus is a process-local broadcast channel. Publish delivers to every
// subscription whose kind filter matches; PublishSticky additionally records
// the event so late subscribers observe it on Subscribe until a subscriber
// clears it with ClearSticky.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	sticky map[stickyKey]Event
	nextID uint64
	log    logging.Logger
}

func NewBus(log logging.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		sticky: make(map[stickyKey]Event),
		log:    log.With("component", "events"),
	}
}

// Subscribe registers for the given kinds. Any sticky event matching the
// filter is delivered immediately, so a subscriber created mid-sync still
// observes the eventual terminal event.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		C:     make(chan Event, subscriberBuffer),
		kinds: make(map[Kind]struct{}, len(kinds)),
		id:    b.nextID,
	}
	b.nextID++
	for _, k := range kinds {
		sub.kinds[k] = struct{}{}
	}
	b.subs[sub.id] = sub

	for _, ev := range b.sticky {
		if sub.wants(ev.Kind) {
			b.deliver(context.Background(), sub, ev)
		}
	}
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.C)
}

// Publish delivers ev to all matching subscribers. Delivery is at most once
// per subscriber and never blocks the publisher.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcast(ctx, ev)
}

// PublishSticky is Publish plus retention: the event is stored under its
// (kind, account, path) key, replacing any previous sticky event there.
func (b *Bus) PublishSticky(ctx context.Context, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sticky[stickyKey{kind: ev.Kind, account: ev.Account, path: ev.Path}] = ev
	b.broadcast(ctx, ev)
}

// Sticky returns the retained event for (kind, account, path), if any.
func (b *Bus) Sticky(kind Kind, account, path string) (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev, ok := b.sticky[stickyKey{kind: kind, account: account, path: path}]
	return ev, ok
}

// ClearSticky removes a retained event after a subscriber has processed it,
// so it is not redelivered to future subscribers.
func (b *Bus) ClearSticky(kind Kind, account, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sticky, stickyKey{kind: kind, account: account, path: path})
}

func (b *Bus) broadcast(ctx context.Context, ev Event) {
	for _, sub := range b.subs {
		if sub.wants(ev.Kind) {
			b.deliver(ctx, sub, ev)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, sub *Subscription, ev Event) {
	select {
	case sub.C <- ev:
	default:
		// Subscriber is not draining; drop rather than block the core.
		b.log.Warn(ctx, "dropping event for slow subscriber",
			"kind", ev.Kind, "account", ev.Account, "path", ev.Path)
	}
}
