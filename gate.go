package linqlens

import (
	"context"
	"sync"
)

// gate serializes access to a session's workspace. It is a one-slot channel
// rather than a mutex so that waiting can be abandoned when the caller's
// context is done or the session closes.
type gate struct {
	slot   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newGate() *gate {
	return &gate{
		slot:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// acquire blocks until the caller holds the gate. The returned release may
// be called more than once.
func (g *gate) acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-g.closed:
		return nil, ErrClosed
	default:
	}

	select {
	case g.slot <- struct{}{}:
	case <-g.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Close may have won the race for the slot's previous holder.
	select {
	case <-g.closed:
		<-g.slot
		return nil, ErrClosed
	default:
	}

	var once sync.Once
	return func() { once.Do(func() { <-g.slot }) }, nil
}

// shut wakes every waiter with ErrClosed, then waits for the current holder
// to release. The gate stays held afterwards. Concurrent calls return once
// the first has finished.
func (g *gate) shut() {
	g.once.Do(func() {
		close(g.closed)
		g.slot <- struct{}{}
	})
}
