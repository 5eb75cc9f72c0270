package sim

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robotserial/pkg/imu"
)

func decode(t *testing.T, stream []byte) *imu.Machine {
	src := bytes.NewReader(stream)
	m := imu.NewMachine(src)
	for {
		b, err := src.ReadByte()
		if err != nil {
			return m
		}
		require.NoError(t, m.Dispatch(b))
	}
}

func TestDeviceStepDecodes(t *testing.T) {
	d := NewDevice(math.Pi / 2)
	stream := d.Step(nil, time.Second)
	require.InDelta(t, 90, d.Heading().Degrees(), 1e-9)

	m := decode(t, stream)
	require.Equal(t, imu.StateInertial, m.State())

	accel, ok := m.Accelerometer().Last()
	require.True(t, ok)
	require.InDelta(t, Gravity, accel.Values[2], 1e-5)

	gyro, _ := m.Gyroscope().Last()
	require.InDelta(t, math.Pi/2, gyro.Values[2], 1e-6)

	// heading east, north is on the -Y axis of the board
	mag, _ := m.Magnetometer().Last()
	require.InDelta(t, 0, mag.Values[0], 1e-5)
	require.InDelta(t, -FieldNorth, mag.Values[1], 1e-5)
	require.InDelta(t, -FieldDown, mag.Values[2], 1e-5)
}

func TestDeviceNoiseIsDeterministic(t *testing.T) {
	a1, _, _ := NewDevice(0).WithNoise(0.1, 7).Sample()
	a2, _, _ := NewDevice(0).WithNoise(0.1, 7).Sample()
	require.Equal(t, a1, a2)
	require.NotEqual(t, float32(0), a1[0])
}

func TestDeviceRunWritesHandshake(t *testing.T) {
	var buf bytes.Buffer
	d := NewDevice(1)
	d.Period = time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, d.Run(ctx, &buf))

	stream := buf.Bytes()
	require.True(t, bytes.HasPrefix(stream, []byte{'I', '\n', 0xdb, 0x0f, 0x49, 0x40}))
	m := decode(t, stream[len(d.Preamble)+imu.FloatSize:])
	_, ok := m.Gyroscope().Last()
	require.True(t, ok)
}

func TestAngleNormalize(t *testing.T) {
	require.InDelta(t, -90, AngleFromDegrees(270).Degrees(), 1e-9)
	require.InDelta(t, 180, AngleFromDegrees(180).Degrees(), 1e-9)
	require.InDelta(t, 10, AngleFromDegrees(730).Degrees(), 1e-9)
	require.InDelta(t, math.Pi/2, AngleFromRadians(-3*math.Pi/2).Radians(), 1e-9)
	x, y := AngleFromDegrees(90).Rotate(1, 0)
	require.InDelta(t, 0, x, 1e-12)
	require.InDelta(t, 1, y, 1e-12)
}
