// Package sim simulates a board streaming inertial frames.
package sim

import (
	"bufio"
	"context"
	"io"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robotserial/pkg/framework"
	"github.com/robotalks/robotserial/pkg/imu"
)

// Physical constants used by the simulation.
const (
	Gravity = 9.80665
	// FieldNorth and FieldDown are the earth magnetic field in uT.
	FieldNorth = 20.0
	FieldDown  = 45.0
)

// Device is a board lying on a turntable.
type Device struct {
	// Period between two sets of frames.
	Period time.Duration
	// TurnRate is the rotation around the vertical axis in rad/s.
	TurnRate float64
	// Tilt is the rotation around the X axis.
	Tilt Angle
	// Noise is the standard deviation added to every value.
	Noise float64
	// Preamble is sent before the handshake value.
	Preamble []byte

	lock    sync.Mutex
	heading Angle
	rnd     *rand.Rand
}

// DefaultPeriod is 50Hz.
const DefaultPeriod = 20 * time.Millisecond

// NewDevice creates a Device turning at rate rad/s.
func NewDevice(rate float64) *Device {
	return &Device{
		Period:   DefaultPeriod,
		TurnRate: rate,
		Preamble: []byte{imu.FrameInertial, imu.FrameNewline},
	}
}

// WithNoise sets Noise and seeds the generator.
func (d *Device) WithNoise(stddev float64, seed int64) *Device {
	d.Noise = stddev
	d.rnd = rand.New(rand.NewSource(seed))
	return d
}

// Heading returns the current heading.
func (d *Device) Heading() Angle {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.heading
}

// Sample returns the values the sensors measure at the current heading.
func (d *Device) Sample() (accel, gyro, mag []float32) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.sampleLocked()
}

func (d *Device) sampleLocked() (accel, gyro, mag []float32) {
	ay, az := Gravity*math.Sin(d.Tilt.Radians()), Gravity*math.Cos(d.Tilt.Radians())
	mx, my := (-d.heading).Rotate(FieldNorth, 0)
	accel = d.noisy(0, ay, az)
	gyro = d.noisy(0, 0, d.TurnRate)
	mag = d.noisy(mx, my, -FieldDown)
	return
}

func (d *Device) noisy(values ...float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		if d.Noise > 0 && d.rnd != nil {
			v += d.rnd.NormFloat64() * d.Noise
		}
		out[i] = float32(v)
	}
	return out
}

// AppendHandshake appends the preamble and the handshake value.
func (d *Device) AppendHandshake(dst []byte) []byte {
	return imu.AppendHandshake(append(dst, d.Preamble...))
}

// Step advances the simulation by dt and appends one frame per sensor.
func (d *Device) Step(dst []byte, dt time.Duration) []byte {
	d.lock.Lock()
	d.heading = d.heading.AddRadians(d.TurnRate * dt.Seconds())
	accel, gyro, mag := d.sampleLocked()
	d.lock.Unlock()
	dst = append(dst, imu.FrameInertial)
	dst = imu.AppendFrame(dst, imu.Accelerometer, accel...)
	dst = imu.AppendFrame(dst, imu.Gyroscope, gyro...)
	dst = imu.AppendFrame(dst, imu.Magnetometer, mag...)
	return append(dst, imu.FrameNewline)
}

// Run writes the handshake and then frames every Period until ctx is done
// or a write fails.
func (d *Device) Run(ctx context.Context, w io.Writer) error {
	period := d.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(d.AppendHandshake(nil)); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			buf = d.Step(buf[:0], period)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return err
			}
		}
	}
}

// Source writes a device stream to w until ctx is done.
type Source interface {
	Run(ctx context.Context, w io.Writer) error
}

// Serve accepts connections and runs a new source on each of them.
func Serve(ctx context.Context, ln net.Listener, newSource func() Source) error {
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			glog.Infof("device connected: %s", conn.RemoteAddr())
			go func(conn net.Conn) {
				defer conn.Close()
				err := newSource().Run(ctx, conn)
				glog.Infof("device disconnected: %s: %v", conn.RemoteAddr(), err)
			}(conn)
		}
	})
}
