package events

import (
	"context"
	"sync"

	"fastpay-ledger/internal/domain/events"
)

// Broker fans account changes out inside one process. Slow subscribers miss
// events rather than blocking writers.
type Broker struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[chan events.AccountChanged]struct{}
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{buffer: buffer, subs: map[string]map[chan events.AccountChanged]struct{}{}}
}

func (b *Broker) Publish(_ context.Context, ev events.AccountChanged) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers until ctx ends; the channel is closed afterwards.
func (b *Broker) Subscribe(ctx context.Context, userID string) (<-chan events.AccountChanged, error) {
	ch := make(chan events.AccountChanged, b.buffer)
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = map[chan events.AccountChanged]struct{}{}
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[userID], ch)
		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
