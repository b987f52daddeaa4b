package stats

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is the cancellation cause of a ticket replaced by a newer Begin.
var ErrSuperseded = errors.New("superseded by a newer request")

// Ticket identifies one in-flight computation for a key.
type Ticket struct {
	key string
	gen uint64
}

type generation struct {
	gen    uint64
	cancel context.CancelCauseFunc
}

// Tracker keeps the newest generation per key so a slow, older computation cannot
// overwrite the result of a newer one.
type Tracker struct {
	mu      sync.Mutex
	next    uint64
	current map[string]generation
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{current: make(map[string]generation)}
}

// Begin starts a new generation for key and cancels the previous one with ErrSuperseded.
// The returned context must be released with End.
func (t *Tracker) Begin(key string, parent context.Context) (context.Context, Ticket) {
	ctx, cancel := context.WithCancelCause(parent)

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.current[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	t.next++
	t.current[key] = generation{gen: t.next, cancel: cancel}
	return ctx, Ticket{key: key, gen: t.next}
}

// Commit runs fn only if tk is still the newest generation of its key. fn runs under
// the tracker lock and should be short.
func (t *Tracker) Commit(tk Ticket, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.current[tk.key]
	if !ok || cur.gen != tk.gen {
		return false
	}
	fn()
	return true
}

// End releases tk. The key is forgotten when tk is still its newest generation.
func (t *Tracker) End(tk Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.current[tk.key]
	if ok && cur.gen == tk.gen {
		cur.cancel(context.Canceled)
		delete(t.current, tk.key)
	}
}

// InFlight reports how many keys have a running generation.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.current)
}
