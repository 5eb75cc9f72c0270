package imu

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
)

// FloatSize is the size of a float on the wire.
const FloatSize = 4

// Handshake bounds, exclusive.
const (
	HandshakeMin float32 = 3.14158
	HandshakeMax float32 = 3.14160
)

// ReadFloat reads a little-endian float32.
// A read returning no data and no error is a timeout.
func ReadFloat(r io.Reader) (float32, error) {
	var buf [FloatSize]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// PutFloat encodes v into b, which must hold FloatSize bytes.
func PutFloat(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

// AppendFloats appends encoded values to dst.
func AppendFloats(dst []byte, values ...float32) []byte {
	var buf [FloatSize]byte
	for _, v := range values {
		PutFloat(buf[:], v)
		dst = append(dst, buf[:]...)
	}
	return dst
}

// AppendHandshake appends the value a device sends when a port opens.
func AppendHandshake(dst []byte) []byte {
	return AppendFloats(dst, math.Pi)
}

// AppendFrame appends a sensor frame: marker followed by the values.
func AppendFrame(dst []byte, sensor Sensor, values ...float32) []byte {
	return AppendFloats(append(dst, sensor.Frame()), values...)
}

// IsHandshake tells whether v proves the peer encodes floats the way we decode them.
func IsHandshake(v float32) bool {
	return v > HandshakeMin && v < HandshakeMax
}

func readFull(r io.Reader, p []byte) error {
	var got int
	for got < len(p) {
		n, err := r.Read(p[got:])
		got += n
		if got >= len(p) {
			return nil
		}
		if err != nil {
			if isTimeout(err) {
				err = ErrTimeout
			}
			return &ShortReadError{Want: len(p), Got: got, Err: err}
		}
		if n == 0 {
			return &ShortReadError{Want: len(p), Got: got, Err: ErrTimeout}
		}
	}
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded) || os.IsTimeout(err)
}
