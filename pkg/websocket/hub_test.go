package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/robotserial/pkg/imu"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	ws, err := websocket.Dial(url, "", "http://localhost/")
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestHubFiltersSensors(t *testing.T) {
	hub := NewHub("board1", msgs.EncodingJSON)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	ws := dial(t, srv, "?sensor=gyroscope")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.HandleReading(imu.Reading{Sensor: imu.Accelerometer, Seq: 1, Values: []float32{0, 0, 9.8}})
	hub.HandleReading(imu.Reading{Sensor: imu.Gyroscope, Seq: 2, Values: []float32{1, 2, 3}})

	ws.SetReadDeadline(time.Now().Add(time.Second))
	var msg string
	require.NoError(t, websocket.Message.Receive(ws, &msg))
	m, err := msgs.EncodingJSON.Unmarshal([]byte(msg))
	require.NoError(t, err)
	require.Equal(t, "gyroscope", m.Sensor)
	require.Equal(t, uint64(2), m.Seq)
	require.Equal(t, "board1", m.Device)
}

func TestHubProtoBinary(t *testing.T) {
	hub := NewHub("board1", msgs.EncodingProto)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	ws := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.HandleReading(imu.Reading{Sensor: imu.Magnetometer, Values: []float32{4, 5, 6}})
	ws.SetReadDeadline(time.Now().Add(time.Second))
	var data []byte
	require.NoError(t, websocket.Message.Receive(ws, &data))
	m, err := msgs.EncodingProto.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, []float32{4, 5, 6}, m.Values)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub("board1", msgs.EncodingJSON)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	ws := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	ws.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubRejectsUnknownSensor(t *testing.T) {
	hub := NewHub("board1", msgs.EncodingJSON)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	ws := dial(t, srv, "?sensor=barometer")
	ws.SetReadDeadline(time.Now().Add(time.Second))
	var msg string
	require.NoError(t, websocket.Message.Receive(ws, &msg))
	require.Contains(t, msg, "barometer")
	require.Zero(t, hub.Clients())
}
