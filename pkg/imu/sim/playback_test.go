package sim

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robotserial/pkg/imu"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
)

func TestPlaybackReplaysRecording(t *testing.T) {
	var file bytes.Buffer
	rec := msgs.NewRecorder(&file, msgs.EncodingProto)
	require.NoError(t, rec.Record(imu.Reading{Sensor: imu.Accelerometer, Seq: 1, Values: []float32{1, 2, 3}}))
	require.NoError(t, rec.Record(imu.Reading{Sensor: imu.Magnetometer, Seq: 1, Values: []float32{4, 5, 6}}))

	p, err := LoadPlayback(&file, msgs.EncodingProto)
	require.NoError(t, err)
	require.Len(t, p.Readings, 2)
	p.Period = time.Millisecond

	var out bytes.Buffer
	require.Equal(t, io.EOF, p.Copy().Run(context.Background(), &out))

	stream := out.Bytes()
	require.True(t, bytes.HasPrefix(stream, imu.AppendHandshake(nil)))
	m := decode(t, stream[imu.FloatSize:])
	accel, ok := m.Accelerometer().Last()
	require.True(t, ok)
	require.Equal(t, []float32{1, 2, 3}, accel.Values)
	mag, ok := m.Magnetometer().Last()
	require.True(t, ok)
	require.Equal(t, []float32{4, 5, 6}, mag.Values)
	_, ok = m.Gyroscope().Last()
	require.False(t, ok)
}

func TestLoadPlaybackEmpty(t *testing.T) {
	_, err := LoadPlayback(bytes.NewReader(nil), msgs.EncodingJSON)
	require.Error(t, err)
}
