package imu

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// ReadingHandler is called when a reading is committed.
// It runs on the link goroutine and must not block for long.
type ReadingHandler interface {
	HandleReading(Reading)
}

// HandleReadingFunc is func type of ReadingHandler.
type HandleReadingFunc func(Reading)

// HandleReading implements ReadingHandler.
func (f HandleReadingFunc) HandleReading(r Reading) {
	f(r)
}

// ReadingHandlers dispatches a reading to each handler in order.
type ReadingHandlers []ReadingHandler

// HandleReading implements ReadingHandler.
func (h ReadingHandlers) HandleReading(r Reading) {
	for _, handler := range h {
		handler.HandleReading(r)
	}
}

// Channel holds the last reading of one sensor and delivers new ones.
//
// Without a gate every read invokes the handler (free-running). With a gate
// installed, a read invokes the handler and releases one request only if a
// consumer is waiting in AwaitOne or TryAwaitOne.
type Channel struct {
	sensor Sensor
	strict bool

	lock    sync.RWMutex
	values  []float32
	seq     uint64
	time    time.Time
	handler ReadingHandler
	gate    *Gate
	err     error
}

// NewChannel creates a Channel for the sensor.
func NewChannel(sensor Sensor) *Channel {
	return &Channel{sensor: sensor, values: make([]float32, Axes)}
}

// Sensor returns the sensor of the channel.
func (c *Channel) Sensor() Sensor {
	return c.sensor
}

// SetHandler sets the handler, nil to remove.
func (c *Channel) SetHandler(h ReadingHandler) {
	c.lock.Lock()
	c.handler = h
	c.lock.Unlock()
}

// InstallGate switches to single-shot mode with no pending request.
// Waiters of a previously installed gate fail with ErrGateRemoved.
func (c *Channel) InstallGate() *Gate {
	gate := newGate()
	c.lock.Lock()
	old := c.gate
	c.gate = gate
	c.lock.Unlock()
	if old != nil {
		old.close(ErrGateRemoved)
	}
	return gate
}

// RemoveGate reverts to free-running mode.
// Pending requests fail with ErrGateRemoved.
func (c *Channel) RemoveGate() {
	c.lock.Lock()
	gate := c.gate
	c.gate = nil
	c.lock.Unlock()
	if gate != nil {
		gate.close(ErrGateRemoved)
	}
}

// Gated tells whether a gate is installed.
func (c *Channel) Gated() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.gate != nil
}

// Last returns the last committed reading, false if none yet.
func (c *Channel) Last() (Reading, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.seq == 0 {
		return Reading{Sensor: c.sensor, Values: make([]float32, Axes)}, false
	}
	return c.readingLocked().Clone(), true
}

// Err returns the error which ended the session of the channel.
func (c *Channel) Err() error {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.err
}

// AwaitOne requests the next reading and blocks until it is delivered.
func (c *Channel) AwaitOne(ctx context.Context) (Reading, error) {
	gate, err := c.currentGate()
	if err != nil {
		return Reading{}, err
	}
	return gate.wait(ctx)
}

// AwaitOneTimeout is AwaitOne with a timeout.
func (c *Channel) AwaitOneTimeout(timeout time.Duration) (Reading, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.AwaitOne(ctx)
}

// TryAwaitOne never blocks. The first call arms a request and returns
// ErrNotReady, later calls return the reading once it was delivered.
func (c *Channel) TryAwaitOne() (Reading, error) {
	gate, err := c.currentGate()
	if err != nil {
		return Reading{}, err
	}
	return gate.try()
}

// Await blocks when block is set, up to timeout if positive.
func (c *Channel) Await(block bool, timeout time.Duration) (Reading, error) {
	if !block {
		return c.TryAwaitOne()
	}
	if timeout <= 0 {
		return c.AwaitOne(context.Background())
	}
	return c.AwaitOneTimeout(timeout)
}

func (c *Channel) currentGate() (*Gate, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	if c.gate == nil {
		return nil, ErrNoGate
	}
	return c.gate, nil
}

func (c *Channel) readingLocked() Reading {
	return Reading{Sensor: c.sensor, Seq: c.seq, Time: c.time, Values: c.values}
}

// read decodes Axes floats from src. Committed values are replaced only
// when all of them decode.
func (c *Channel) read(src io.Reader) error {
	row := make([]float32, Axes)
	for i := range row {
		v, err := ReadFloat(src)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", c.sensor, i, err)
		}
		if c.strict && (math.IsNaN(float64(v)) || math.IsInf(float64(v), 0)) {
			return &DecodeError{Sensor: c.sensor, Index: i, Value: v}
		}
		row[i] = v
	}

	c.lock.Lock()
	c.values = row
	c.seq++
	c.time = time.Now()
	reading := c.readingLocked()
	handler, gate := c.handler, c.gate
	c.lock.Unlock()

	var w *waiter
	if gate != nil {
		if w = gate.take(); w == nil {
			return nil
		}
	}
	if handler != nil {
		handler.HandleReading(reading.Clone())
	}
	if w != nil {
		w.deliver(reading)
	}
	return nil
}

func (c *Channel) close(err error) {
	ended := &SessionEndedError{Err: err}
	c.lock.Lock()
	if c.err != nil {
		c.lock.Unlock()
		return
	}
	c.err = ended
	gate := c.gate
	c.lock.Unlock()
	if gate != nil {
		gate.close(ended)
	}
}
