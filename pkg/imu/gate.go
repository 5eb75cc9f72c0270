package imu

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// Gate turns a Channel into single-shot mode: each read releases at most one
// pending request, and readings nobody asked for are not delivered.
type Gate struct {
	lock    sync.Mutex
	waiters list.List
	armed   *waiter
	err     error
}

type waiter struct {
	elm *list.Element
	ch  chan waitResult
}

type waitResult struct {
	reading Reading
	err     error
}

func newGate() *Gate {
	return &Gate{}
}

// Pending returns the number of requests waiting for a reading.
func (g *Gate) Pending() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.waiters.Len()
}

func (g *Gate) pushLocked() *waiter {
	w := &waiter{ch: make(chan waitResult, 1)}
	w.elm = g.waiters.PushBack(w)
	return w
}

func (g *Gate) wait(ctx context.Context) (Reading, error) {
	g.lock.Lock()
	if g.err != nil {
		g.lock.Unlock()
		return Reading{}, g.err
	}
	w := g.armed
	if w != nil {
		g.armed = nil
	} else {
		w = g.pushLocked()
	}
	g.lock.Unlock()

	select {
	case res := <-w.ch:
		return res.reading, res.err
	case <-ctx.Done():
		if g.cancel(w) {
			return Reading{}, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		// released while timing out
		res := <-w.ch
		return res.reading, res.err
	}
}

func (g *Gate) try() (Reading, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.err != nil {
		return Reading{}, g.err
	}
	if g.armed == nil {
		g.armed = g.pushLocked()
		return Reading{}, ErrNotReady
	}
	select {
	case res := <-g.armed.ch:
		g.armed = nil
		return res.reading, res.err
	default:
		return Reading{}, ErrNotReady
	}
}

// cancel withdraws a pending request, false if it was released already.
func (g *Gate) cancel(w *waiter) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	if w.elm == nil {
		return false
	}
	g.waiters.Remove(w.elm)
	w.elm = nil
	return true
}

// take pops the oldest pending request, nil if none.
func (g *Gate) take() *waiter {
	g.lock.Lock()
	defer g.lock.Unlock()
	elm := g.waiters.Front()
	if elm == nil {
		return nil
	}
	g.waiters.Remove(elm)
	w := elm.Value.(*waiter)
	w.elm = nil
	return w
}

func (w *waiter) deliver(reading Reading) {
	w.ch <- waitResult{reading: reading.Clone()}
}

func (g *Gate) close(err error) {
	g.lock.Lock()
	if g.err != nil {
		g.lock.Unlock()
		return
	}
	g.err = err
	var waiters []*waiter
	for elm := g.waiters.Front(); elm != nil; elm = elm.Next() {
		w := elm.Value.(*waiter)
		w.elm = nil
		waiters = append(waiters, w)
	}
	g.waiters.Init()
	g.armed = nil
	g.lock.Unlock()
	for _, w := range waiters {
		w.ch <- waitResult{err: err}
	}
}
