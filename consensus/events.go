package consensus

import (
	"sync"

	"chainforge/types"
)

// CommitEvent reports one block the engine just finalized, for any
// subscriber that wants to observe the chain without polling the store.
type CommitEvent struct {
	Block *types.Block
	Cert  *types.FinalityCertificate
}

// EventBus fans a single producer's commit events out to any number of
// subscribers. A slow or absent subscriber never blocks the engine: each
// subscriber channel is buffered, and a full channel simply drops the
// event for that subscriber.
type EventBus struct {
	mtx  sync.Mutex
	subs map[int]chan CommitEvent
	next int
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan CommitEvent)}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function the caller must invoke when done listening.
func (b *EventBus) Subscribe() (<-chan CommitEvent, func()) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	id := b.next
	b.next++
	ch := make(chan CommitEvent, 16)
	b.subs[id] = ch

	return ch, func() {
		b.mtx.Lock()
		defer b.mtx.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

func (b *EventBus) Publish(ev CommitEvent) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
