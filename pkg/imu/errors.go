package imu

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates the transport or a consumer wait timed out.
	ErrTimeout = errors.New("timeout")
	// ErrShortRead indicates fewer bytes than a value needs were received.
	ErrShortRead = errors.New("short read")
	// ErrHandshakeTimeout indicates no session became ready in time.
	ErrHandshakeTimeout = errors.New("handshake timeout")
	// ErrNoGate indicates an await on a channel without an installed gate.
	ErrNoGate = errors.New("no gate installed")
	// ErrNotReady indicates a non-blocking await was not satisfied yet.
	ErrNotReady = errors.New("not ready")
	// ErrGateRemoved is delivered to waiters of a removed or replaced gate.
	ErrGateRemoved = errors.New("gate removed")
	// ErrStopped indicates the link was asked to stop.
	ErrStopped = errors.New("stopped")
	// ErrAlreadyStarted is returned when a Link is started twice.
	ErrAlreadyStarted = errors.New("already started")
	// ErrNoCandidates indicates there is no port to try.
	ErrNoCandidates = errors.New("no candidate ports")
)

// ShortReadError reports a value truncated by a timeout or the end of stream.
type ShortReadError struct {
	Want int
	Got  int
	Err  error
}

// Error implements error.
func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read: %d of %d bytes: %v", e.Got, e.Want, e.Err)
}

// Unwrap returns the transport error.
func (e *ShortReadError) Unwrap() error {
	return e.Err
}

// Is matches ErrShortRead.
func (e *ShortReadError) Is(target error) bool {
	return target == ErrShortRead
}

// DecodeError reports a value rejected by strict decoding.
type DecodeError struct {
	Sensor Sensor
	Index  int
	Value  float32
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s[%d]: invalid value %v", e.Sensor, e.Index, e.Value)
}

// UnrecognizedByteError is raised by a byte the current state doesn't accept.
type UnrecognizedByteError struct {
	Byte  byte
	State State
}

// Error implements error.
func (e *UnrecognizedByteError) Error() string {
	return fmt.Sprintf("unrecognized byte 0x%02x (%q) in state %s", e.Byte, e.Byte, e.State)
}

// HandshakeError reports a port which didn't prove the expected byte order.
type HandshakeError struct {
	Port  string
	Value float32
	Err   error
}

// Error implements error.
func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake on %s: %v", e.Port, e.Err)
	}
	return fmt.Sprintf("handshake on %s: got %v", e.Port, e.Value)
}

// Unwrap returns the read error if any.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// SessionEndedError is delivered to awaits on a closed session.
type SessionEndedError struct {
	Err error
}

// Error implements error.
func (e *SessionEndedError) Error() string {
	if e.Err == nil {
		return "session ended"
	}
	return "session ended: " + e.Err.Error()
}

// Unwrap returns the error which ended the session.
func (e *SessionEndedError) Unwrap() error {
	return e.Err
}
