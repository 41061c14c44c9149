package syncer

import "context"

// gate is the capacity-1 mutual exclusion shared by delta processing and the
// full resync. A channel rather than a mutex so acquisition is context-aware
// and held-ness is observable for the status surface.
type gate struct {
	ch chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the gate is free or ctx is done.
func (g *gate) Acquire(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the gate only if it is free.
func (g *gate) TryAcquire() bool {
	select {
	case g.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the gate. Must be called exactly once per successful acquire.
func (g *gate) Release() {
	<-g.ch
}

// Held reports whether the gate is currently taken.
func (g *gate) Held() bool {
	return len(g.ch) == 1
}
