package imu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// feed dispatches every frame byte of stream to a new machine, the machine
// reading payloads from the same buffer.
func feed(stream []byte) (*Machine, error) {
	src := bytes.NewReader(stream)
	m := NewMachine(src)
	for {
		b, err := src.ReadByte()
		if err != nil {
			return m, nil
		}
		if err = m.Dispatch(b); err != nil {
			return m, err
		}
	}
}

func TestMachineTransitions(t *testing.T) {
	testCases := []struct {
		name  string
		in    []byte
		state State
		err   *UnrecognizedByteError
	}{
		{name: "initial", in: nil, state: StateStart},
		{name: "enter inertial", in: []byte("I"), state: StateInertial},
		{name: "stay inertial", in: []byte("II"), state: StateInertial},
		{name: "newline in start", in: []byte("\n\n"), state: StateStart},
		{name: "newline in inertial", in: []byte("I\n"), state: StateInertial},
		{name: "payload in start", in: []byte("a"), state: StateStart,
			err: &UnrecognizedByteError{Byte: 'a', State: StateStart}},
		{name: "garbage in start", in: []byte("x"), state: StateStart,
			err: &UnrecognizedByteError{Byte: 'x', State: StateStart}},
		{name: "garbage in inertial", in: []byte("I\nz"), state: StateInertial,
			err: &UnrecognizedByteError{Byte: 'z', State: StateInertial}},
		{name: "carriage return", in: []byte("I\r"), state: StateInertial,
			err: &UnrecognizedByteError{Byte: '\r', State: StateInertial}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := feed(tc.in)
			require.Equal(t, tc.state, m.State())
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			var ube *UnrecognizedByteError
			require.True(t, errors.As(err, &ube))
			require.Equal(t, tc.err, ube)
		})
	}
}

func TestMachinePayloads(t *testing.T) {
	var stream []byte
	stream = append(stream, 'I')
	stream = AppendFrame(stream, Accelerometer, 1, 2, 3)
	stream = AppendFrame(stream, Gyroscope, 4, 5, 6)
	stream = AppendFrame(stream, Magnetometer, 7, 8, 9)
	stream = AppendFrame(stream, Accelerometer, 10, 11, 12)

	m, err := feed(stream)
	require.NoError(t, err)
	require.Equal(t, StateInertial, m.State())

	expected := map[Sensor][]float32{
		Accelerometer: {10, 11, 12},
		Gyroscope:     {4, 5, 6},
		Magnetometer:  {7, 8, 9},
	}
	for sensor, values := range expected {
		r, ok := m.Channel(sensor).Last()
		require.True(t, ok, sensor.String())
		require.Equal(t, values, r.Values, sensor.String())
	}
	r, _ := m.Accelerometer().Last()
	require.Equal(t, uint64(2), r.Seq)
}

func TestMachineNewlineInvariance(t *testing.T) {
	var plain, noisy []byte
	plain = append(plain, 'I')
	noisy = append(noisy, '\n', 'I', '\n', '\n')
	plain = AppendFrame(plain, Gyroscope, 0.25, -0.5, 8)
	noisy = AppendFrame(noisy, Gyroscope, 0.25, -0.5, 8)
	plain = AppendFrame(plain, Magnetometer, 30, 40, 50)
	noisy = append(noisy, '\n')
	noisy = AppendFrame(noisy, Magnetometer, 30, 40, 50)
	noisy = append(noisy, '\n')

	m1, err := feed(plain)
	require.NoError(t, err)
	m2, err := feed(noisy)
	require.NoError(t, err)
	require.Equal(t, m1.State(), m2.State())
	for _, sensor := range Sensors {
		r1, ok1 := m1.Channel(sensor).Last()
		r2, ok2 := m2.Channel(sensor).Last()
		require.Equal(t, ok1, ok2)
		require.Equal(t, r1.Values, r2.Values)
		require.Equal(t, r1.Seq, r2.Seq)
	}
}

func TestMachineNewlineInsidePayloadIsData(t *testing.T) {
	// 0x0a is a payload byte here, not a marker
	stream := []byte{'I', 'a'}
	stream = AppendFloats(stream, 1)
	stream = append(stream, 0x0a, 0, 0, 0)
	stream = AppendFloats(stream, 3)
	m, err := feed(stream)
	require.NoError(t, err)
	r, ok := m.Accelerometer().Last()
	require.True(t, ok)
	require.Equal(t, float32(1), r.Values[0])
	require.Equal(t, float32(3), r.Values[2])
}

func TestMachineUnrecognizedKeepsCommitted(t *testing.T) {
	var stream []byte
	stream = append(stream, 'I')
	stream = AppendFrame(stream, Accelerometer, 1, 2, 3)
	stream = append(stream, '?')
	stream = AppendFrame(stream, Accelerometer, 9, 9, 9)

	m, err := feed(stream)
	var ube *UnrecognizedByteError
	require.True(t, errors.As(err, &ube))
	require.Equal(t, byte('?'), ube.Byte)
	r, _ := m.Accelerometer().Last()
	require.Equal(t, []float32{1, 2, 3}, r.Values)
}

func TestMachineTruncatedPayload(t *testing.T) {
	stream := AppendFrame([]byte{'I'}, Magnetometer, 1, 2, 3)
	m, err := feed(stream[:len(stream)-2])
	require.True(t, errors.Is(err, ErrShortRead))
	_, ok := m.Magnetometer().Last()
	require.False(t, ok)
}

func TestMachineExit(t *testing.T) {
	m := NewMachine(bytes.NewReader(nil))
	require.False(t, m.Exited())
	m.Exit()
	require.True(t, m.Exited())
}

func TestParseSensor(t *testing.T) {
	for _, sensor := range Sensors {
		parsed, err := ParseSensor(sensor.String())
		require.NoError(t, err)
		require.Equal(t, sensor, parsed)
		parsed, err = ParseSensor(string(sensor.Frame()))
		require.NoError(t, err)
		require.Equal(t, sensor, parsed)
	}
	_, err := ParseSensor("barometer")
	require.Error(t, err)
}
