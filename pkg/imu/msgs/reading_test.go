package msgs

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robotserial/pkg/imu"
)

func TestReadingJSON(t *testing.T) {
	r := imu.Reading{
		Sensor: imu.Gyroscope,
		Seq:    3,
		Time:   time.Unix(10, 5),
		Values: []float32{0.5, -1, 2},
	}
	data, err := EncodingJSON.Encode(r, "board1")
	require.NoError(t, err)
	require.JSONEq(t, `{"sensor":"gyroscope","seq":3,"timestamp":10000000005,"values":[0.5,-1,2],"device":"board1"}`, string(data))

	m, err := EncodingJSON.Unmarshal(data)
	require.NoError(t, err)
	back, err := m.ToReading()
	require.NoError(t, err)
	require.Equal(t, r.Sensor, back.Sensor)
	require.Equal(t, r.Values, back.Values)
	require.True(t, r.Time.Equal(back.Time))
}

func TestReadingProtoWire(t *testing.T) {
	data, err := EncodingProto.Encode(imu.Reading{Sensor: imu.Magnetometer, Values: []float32{1, 2, 3}}, "")
	require.NoError(t, err)
	// field 4, packed fixed32 of 12 bytes
	require.True(t, bytes.Contains(data, append([]byte{0x22, 0x0c}, imu.AppendFloats(nil, 1, 2, 3)...)))

	m, err := EncodingProto.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, "magnetometer", m.Sensor)
	require.Equal(t, []float32{1, 2, 3}, m.Values)
	require.Zero(t, m.Timestamp)
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("")
	require.NoError(t, err)
	require.Equal(t, EncodingJSON, enc)
	enc, err = ParseEncoding("proto")
	require.NoError(t, err)
	require.Equal(t, EncodingProto, enc)
	_, err = ParseEncoding("xml")
	require.Error(t, err)
	_, err = Encoding("xml").Marshal(&Reading{})
	require.Error(t, err)
}

func TestToReadingUnknownSensor(t *testing.T) {
	_, err := (&Reading{Sensor: "thermometer"}).ToReading()
	require.Error(t, err)
}

func TestRecorderReplayer(t *testing.T) {
	for _, enc := range []Encoding{EncodingJSON, EncodingProto} {
		t.Run(string(enc), func(t *testing.T) {
			var buf bytes.Buffer
			rec := NewRecorder(&buf, enc)
			rec.Device = "dev"
			rec.HandleReading(imu.Reading{Sensor: imu.Accelerometer, Seq: 1, Values: []float32{1, 2, 3}})
			require.NoError(t, rec.Record(imu.Reading{Sensor: imu.Gyroscope, Seq: 1, Values: []float32{4, 5, 6}}))
			require.NoError(t, rec.Err())

			rp := NewReplayer(&buf, enc)
			first, err := rp.Next()
			require.NoError(t, err)
			require.Equal(t, "accelerometer", first.Sensor)
			require.Equal(t, "dev", first.Device)
			second, err := rp.Next()
			require.NoError(t, err)
			require.Equal(t, []float32{4, 5, 6}, second.Values)
			_, err = rp.Next()
			require.Equal(t, io.EOF, err)
		})
	}
}

func TestReplayerOversizedRecord(t *testing.T) {
	_, err := NewReplayer(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0x7f}), EncodingJSON).Next()
	require.Equal(t, io.ErrShortBuffer, err)
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("disk full")
}

func TestRecorderKeepsFirstError(t *testing.T) {
	w := &failingWriter{}
	rec := NewRecorder(w, EncodingJSON)
	rec.HandleReading(imu.Reading{Sensor: imu.Accelerometer, Seq: 1, Values: []float32{1, 2, 3}})
	require.EqualError(t, rec.Err(), "disk full")

	require.Error(t, rec.Record(imu.Reading{Sensor: imu.Gyroscope, Seq: 1, Values: []float32{4, 5, 6}}))
	require.EqualError(t, rec.Err(), "disk full")
	require.Equal(t, 2, w.writes)
}
