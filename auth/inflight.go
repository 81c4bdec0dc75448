package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// inflightCoordinator admits one redirect flow at a time. Callers that arrive
// while a flow is active queue up and are all released, in arrival order,
// when it settles.
type inflightCoordinator struct {
	mu      sync.Mutex
	flowID  string
	waiters []chan struct{}
}

func newInflightCoordinator() *inflightCoordinator {
	return &inflightCoordinator{}
}

// begin claims the flow slot, waiting for any active flow to settle first.
func (ic *inflightCoordinator) begin(ctx context.Context) (string, error) {
	for {
		ic.mu.Lock()
		if ic.flowID == "" {
			ic.flowID = uuid.NewString()
			id := ic.flowID
			ic.mu.Unlock()
			return id, nil
		}
		ch := ic.enqueueLocked()
		ic.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// active reports whether this process owns a flow that has not settled.
func (ic *inflightCoordinator) active() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.flowID != ""
}

// wait blocks until the active flow settles. It returns at once when no flow
// is active.
func (ic *inflightCoordinator) wait(ctx context.Context) error {
	ic.mu.Lock()
	if ic.flowID == "" {
		ic.mu.Unlock()
		return nil
	}
	ch := ic.enqueueLocked()
	ic.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ic *inflightCoordinator) enqueueLocked() chan struct{} {
	ch := make(chan struct{})
	ic.waiters = append(ic.waiters, ch)
	return ch
}

// settle releases every waiter exactly once and frees the slot when flowID
// owns it. Settling under another id, as when a redirect is handled out of
// band while a flow is open, only releases waiters; those queued in begin
// queue again behind the owner.
func (ic *inflightCoordinator) settle(flowID string) {
	ic.mu.Lock()
	waiters := ic.waiters
	ic.waiters = nil
	if flowID != "" && flowID == ic.flowID {
		ic.flowID = ""
	}
	ic.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}
