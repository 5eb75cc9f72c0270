package imu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robotserial/pkg/framework"
)

// LinkState is the lifecycle state of a Link.
type LinkState int

// Link states
const (
	LinkIdle LinkState = iota
	LinkConnecting
	LinkHandshaking
	LinkActive
	LinkClosed
)

// String implements fmt.Stringer.
func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkConnecting:
		return "connecting"
	case LinkHandshaking:
		return "handshaking"
	case LinkActive:
		return "active"
	case LinkClosed:
		return "closed"
	}
	return "unknown"
}

// Handshake defaults
const (
	// DefaultMaxPreamble limits the marker bytes accepted before the handshake value.
	DefaultMaxPreamble = 64
	// DefaultHandshakeWait is how long a silent port is given to start talking.
	// Many boards reset when the port opens.
	DefaultHandshakeWait = 2 * time.Second
)

// Transport is a byte source with read timeouts: a read which times out
// returns no data, either with a nil or a timeout error.
type Transport interface {
	io.Reader
	io.Closer
}

// Opener opens a Transport by name.
type Opener interface {
	Open(name string) (Transport, error)
}

// OpenFunc is func type of Opener.
type OpenFunc func(name string) (Transport, error)

// Open implements Opener.
func (f OpenFunc) Open(name string) (Transport, error) {
	return f(name)
}

// Discoverer lists candidate transport names.
type Discoverer interface {
	Discover() ([]string, error)
}

// DiscoverFunc is func type of Discoverer.
type DiscoverFunc func() ([]string, error)

// Discover implements Discoverer.
func (f DiscoverFunc) Discover() ([]string, error) {
	return f()
}

// StateNotifier is called when the link state changes.
// err is set when a port is given up or a session ends with an error.
type StateNotifier interface {
	StateChanged(ctx context.Context, state LinkState, err error)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, LinkState, error)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state LinkState, err error) {
	f(ctx, state, err)
}

// StateNotifiers notifies each notifier in order.
type StateNotifiers []StateNotifier

// StateChanged implements StateNotifier.
func (n StateNotifiers) StateChanged(ctx context.Context, state LinkState, err error) {
	for _, notifier := range n {
		notifier.StateChanged(ctx, state, err)
	}
}

// Link owns the reading goroutine. It tries candidate ports in order until
// one passes the handshake, then feeds the port to a Machine until the
// session ends, and moves on to the next candidate.
type Link struct {
	Candidates     []string
	Opener         Opener
	Discoverer     Discoverer
	Notifier       StateNotifier
	StrictDecoding bool
	MaxPreamble    int
	HandshakeWait  time.Duration
	// Setup is called with each new Machine before the handshake.
	Setup func(*Machine)

	stopped int32

	lock    sync.RWMutex
	state   LinkState
	port    string
	machine *Machine
	ready   chan struct{}
	done    chan struct{}
	err     error
}

// NewLink creates a Link trying the candidates in order.
func NewLink(opener Opener, candidates ...string) *Link {
	return &Link{Opener: opener, Candidates: candidates}
}

// State gets the link state.
func (l *Link) State() LinkState {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state
}

// Port returns the name of the port in use.
func (l *Link) Port() string {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.port
}

// Machine returns the machine of the active session, nil if none.
func (l *Link) Machine() *Machine {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.machine
}

// Ready returns a channel which is closed while a session is active.
// It is replaced when the session ends.
func (l *Link) Ready() <-chan struct{} {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.ready
}

// Done returns a channel closed when the goroutine ends.
func (l *Link) Done() <-chan struct{} {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.done
}

// Err returns the error collected from candidates after the goroutine ended.
func (l *Link) Err() error {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.err
}

// Start launches the goroutine and waits for the first session.
// On timeout the goroutine keeps trying, Stop it if it's not wanted.
func (l *Link) Start(timeout time.Duration) error {
	ready, done, err := l.launch(context.Background())
	if err != nil {
		return err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-done:
		select {
		case <-ready:
			return nil
		default:
		}
		if err := l.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrHandshakeTimeout, err)
		}
		return ErrHandshakeTimeout
	case <-timer.C:
		return ErrHandshakeTimeout
	}
}

// Run implements framework.Runnable.
func (l *Link) Run(ctx context.Context) error {
	_, done, err := l.launch(ctx)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		l.Stop()
		return ctx.Err()
	case <-done:
		return l.Err()
	}
}

// Stop requests the goroutine to stop and waits for it.
// The transport is closed when Stop returns.
func (l *Link) Stop() error {
	atomic.StoreInt32(&l.stopped, 1)
	return l.Join()
}

// Join waits for the goroutine to end.
func (l *Link) Join() error {
	done := l.Done()
	if done == nil {
		return nil
	}
	<-done
	return l.Err()
}

// launch returns the ready channel of the first session, captured before
// the goroutine can replace it.
func (l *Link) launch(ctx context.Context) (ready, done chan struct{}, err error) {
	l.lock.Lock()
	if l.done != nil {
		l.lock.Unlock()
		return nil, nil, ErrAlreadyStarted
	}
	ready, done = make(chan struct{}), make(chan struct{})
	l.ready, l.done = ready, done
	l.lock.Unlock()
	go l.loop(ctx)
	return ready, done, nil
}

func (l *Link) stopRequested(ctx context.Context) bool {
	return atomic.LoadInt32(&l.stopped) != 0 || ctx.Err() != nil
}

func (l *Link) setState(ctx context.Context, state LinkState, err error) {
	l.lock.Lock()
	changed := l.state != state
	l.state = state
	notifier := l.Notifier
	l.lock.Unlock()
	if changed || err != nil {
		glog.V(2).Infof("link state %s", state)
		if notifier != nil {
			notifier.StateChanged(ctx, state, err)
		}
	}
}

func (l *Link) loop(ctx context.Context) {
	var errs fx.AggregatedError
	candidates := l.Candidates
	if len(candidates) == 0 && l.Discoverer != nil {
		names, err := l.Discoverer.Discover()
		if err != nil {
			errs.Add(fmt.Errorf("discover: %w", err))
		}
		candidates = names
	}
	if len(candidates) == 0 && len(errs.Errors) == 0 {
		errs.Add(ErrNoCandidates)
	}
	for _, name := range candidates {
		if l.stopRequested(ctx) {
			break
		}
		active, err := l.session(ctx, name)
		if active {
			// failures of earlier candidates no longer matter
			errs = fx.AggregatedError{}
		}
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", name, err))
		}
	}

	final := LinkIdle
	if l.stopRequested(ctx) {
		final = LinkClosed
	}
	err := errs.Aggregate()
	l.lock.Lock()
	l.err = err
	l.port = ""
	l.lock.Unlock()
	l.setState(ctx, final, nil)
	if err != nil {
		glog.Warningf("link gave up: %v", err)
	}
	l.lock.RLock()
	done := l.done
	l.lock.RUnlock()
	close(done)
}

// session runs one candidate and tells whether it passed the handshake.
// The error is nil if the session was stopped or ended on request.
func (l *Link) session(ctx context.Context, name string) (bool, error) {
	l.lock.Lock()
	l.port = name
	l.lock.Unlock()
	l.setState(ctx, LinkConnecting, nil)
	t, err := l.Opener.Open(name)
	if err != nil {
		glog.Warningf("%s: open failed: %v", name, err)
		l.setState(ctx, LinkIdle, err)
		return false, err
	}
	defer t.Close()
	glog.Infof("%s: opened", name)

	m := NewMachine(t).WithStrictDecoding(l.StrictDecoding)
	if l.Setup != nil {
		l.Setup(m)
	}
	l.setState(ctx, LinkHandshaking, nil)
	if err = l.handshake(ctx, name, m, t); err != nil {
		m.close(err)
		if err == ErrStopped {
			return false, nil
		}
		glog.Warningf("%s: %v", name, err)
		l.setState(ctx, LinkIdle, err)
		return false, err
	}
	glog.Infof("%s: handshake ok", name)

	l.lock.Lock()
	l.machine = m
	ready := l.ready
	l.lock.Unlock()
	l.setState(ctx, LinkActive, nil)
	close(ready)

	err = l.serve(ctx, m, t)

	l.lock.Lock()
	l.machine = nil
	l.ready = make(chan struct{})
	l.lock.Unlock()
	m.close(err)

	if err == nil || err == ErrStopped {
		glog.Infof("%s: session ended", name)
		l.setState(ctx, LinkIdle, nil)
		return true, nil
	}
	glog.Errorf("%s: session ended: %v", name, err)
	l.setState(ctx, LinkIdle, err)
	return true, err
}

// handshake accepts a preamble of markers without payload, then expects
// the pi value.
func (l *Link) handshake(ctx context.Context, name string, m *Machine, t Transport) error {
	limit, wait := l.MaxPreamble, l.HandshakeWait
	if limit <= 0 {
		limit = DefaultMaxPreamble
	}
	if wait <= 0 {
		wait = DefaultHandshakeWait
	}
	deadline := time.Now().Add(wait)
	var b [1]byte
	for n := 0; ; {
		if l.stopRequested(ctx) {
			return ErrStopped
		}
		if err := readFull(t, b[:]); err != nil {
			if errors.Is(err, ErrTimeout) && time.Now().Before(deadline) {
				continue
			}
			return &HandshakeError{Port: name, Err: err}
		}
		if n < limit && (b[0] == FrameNewline || b[0] == FrameInertial) {
			m.Dispatch(b[0])
			n++
			continue
		}
		break
	}
	v, err := ReadFloat(io.MultiReader(bytes.NewReader(b[:]), t))
	if err != nil {
		return &HandshakeError{Port: name, Err: err}
	}
	if !IsHandshake(v) {
		return &HandshakeError{Port: name, Value: v}
	}
	return nil
}

func (l *Link) serve(ctx context.Context, m *Machine, t Transport) error {
	var b [1]byte
	for {
		if l.stopRequested(ctx) {
			return ErrStopped
		}
		if m.Exited() {
			return nil
		}
		n, err := t.Read(b[:])
		if n > 0 {
			if glog.V(3) {
				glog.Infof("frame %q in %s", b[0], m.State())
			}
			if derr := m.Dispatch(b[0]); derr != nil {
				return derr
			}
		}
		if err != nil && !isTimeout(err) {
			return err
		}
	}
}
