package imu

import (
	"io"
	"sync/atomic"
)

// State is the state of the protocol machine.
type State int32

// States
const (
	StateStart State = iota
	StateInertial
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateInertial:
		return "inertial"
	}
	return "unknown"
}

// Frame markers
const (
	FrameInertial byte = 'I'
	FrameAccel    byte = 'a'
	FrameGyro     byte = 'g'
	FrameMag      byte = 'm'
	FrameNewline  byte = '\n'
)

// Machine dispatches frame bytes and decodes payloads from the same source.
// Dispatch must only be called from one goroutine, the rest is safe for
// concurrent use.
type Machine struct {
	src      io.Reader
	state    int32
	exit     int32
	channels [numSensors]*Channel
}

// NewMachine creates a Machine in StateStart reading payloads from src.
func NewMachine(src io.Reader) *Machine {
	m := &Machine{src: src}
	for _, sensor := range Sensors {
		m.channels[sensor] = NewChannel(sensor)
	}
	return m
}

// WithStrictDecoding rejects NaN and infinite values. It must be set before
// the first Dispatch.
func (m *Machine) WithStrictDecoding(en bool) *Machine {
	for _, ch := range m.channels {
		ch.strict = en
	}
	return m
}

// State gets the current state.
func (m *Machine) State() State {
	return State(atomic.LoadInt32(&m.state))
}

// Channel returns the channel of the sensor.
func (m *Machine) Channel(sensor Sensor) *Channel {
	return m.channels[sensor]
}

// Accelerometer returns the accelerometer channel.
func (m *Machine) Accelerometer() *Channel {
	return m.channels[Accelerometer]
}

// Gyroscope returns the gyroscope channel.
func (m *Machine) Gyroscope() *Channel {
	return m.channels[Gyroscope]
}

// Magnetometer returns the magnetometer channel.
func (m *Machine) Magnetometer() *Channel {
	return m.channels[Magnetometer]
}

// Exit asks the reading loop to end the session after the current byte.
func (m *Machine) Exit() {
	atomic.StoreInt32(&m.exit, 1)
}

// Exited tells whether Exit was called.
func (m *Machine) Exited() bool {
	return atomic.LoadInt32(&m.exit) != 0
}

// Dispatch processes one frame byte. A payload marker decodes the whole
// payload before returning. Any error is fatal to the session.
func (m *Machine) Dispatch(b byte) error {
	if b == FrameNewline {
		return nil
	}
	state := m.State()
	switch state {
	case StateStart:
		if b == FrameInertial {
			atomic.StoreInt32(&m.state, int32(StateInertial))
			return nil
		}
	case StateInertial:
		switch b {
		case FrameInertial:
			return nil
		case FrameAccel:
			return m.channels[Accelerometer].read(m.src)
		case FrameGyro:
			return m.channels[Gyroscope].read(m.src)
		case FrameMag:
			return m.channels[Magnetometer].read(m.src)
		}
	}
	return &UnrecognizedByteError{Byte: b, State: state}
}

// close releases all waiters with the error ending the session.
func (m *Machine) close(err error) {
	for _, ch := range m.channels {
		ch.close(err)
	}
}
