package env

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robotserial/pkg/imu/msgs"
	"github.com/robotalks/robotserial/pkg/transport"
)

func testConfig() *Config {
	return &Config{
		Transport:        transport.DefaultConfig(),
		HandshakeTimeout: DefaultHandshakeTimeout,
		Encoding:         msgs.EncodingJSON,
		DeviceID:         "board1",
	}
}

func TestLoadEnv(t *testing.T) {
	vars := map[string]string{
		"ROBOSERIAL_PORTS":    "/dev/ttyUSB0, tcp://localhost:5760,",
		"ROBOSERIAL_DRIVER":   "tarm",
		"ROBOSERIAL_BAUD":     "9600",
		"ROBOSERIAL_ENCODING": "proto",
		"ROBOSERIAL_ID":       "board2",
	}
	c := testConfig()
	require.NoError(t, c.loadEnv(func(name string) string { return vars[name] }))
	require.Equal(t, []string{"/dev/ttyUSB0", "tcp://localhost:5760"}, c.Ports)
	require.Equal(t, transport.DriverTarm, c.Transport.Driver)
	require.Equal(t, 9600, c.Transport.BaudRate)
	require.Equal(t, msgs.EncodingProto, c.Encoding)
	require.Equal(t, "board2", c.DeviceID)

	vars["ROBOSERIAL_BAUD"] = "fast"
	require.Error(t, c.loadEnv(func(name string) string { return vars[name] }))
}

func TestLoadFileFlagsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ports: [/dev/ttyACM0, /dev/ttyACM1]
transport:
  driver: jacobsa
  baud: 57600
  read_timeout: 50ms
handshake_wait: 1s
strict: true
encoding: proto
id: from-file
`), 0644))

	c := testConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.SetupFlagSet(fs)
	require.NoError(t, fs.Parse([]string{"-baud", "9600", "-id", "from-flag"}))
	require.NoError(t, c.LoadFile(fs, path))

	require.Equal(t, []string{"/dev/ttyACM0", "/dev/ttyACM1"}, c.Ports)
	require.Equal(t, transport.DriverJacobsa, c.Transport.Driver)
	require.Equal(t, 9600, c.Transport.BaudRate)
	require.Equal(t, 50*time.Millisecond, c.Transport.ReadTimeout)
	require.Equal(t, time.Second, c.HandshakeWait)
	require.True(t, c.StrictDecoding)
	require.Equal(t, msgs.EncodingProto, c.Encoding)
	require.Equal(t, "from-flag", c.DeviceID)
}

func TestLoadFileInvalid(t *testing.T) {
	dir := t.TempDir()
	c := testConfig()
	require.Error(t, c.LoadFile(nil, filepath.Join(dir, "missing.yaml")))

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  driver: usb\n"), 0644))
	require.Error(t, c.LoadFile(nil, path))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(*Config)
		ok    bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty driver", func(c *Config) { c.Transport.Driver = "" }, true},
		{"bad encoding", func(c *Config) { c.Encoding = "xml" }, false},
		{"empty id", func(c *Config) { c.DeviceID = "" }, false},
		{"wildcard id", func(c *Config) { c.DeviceID = "a/+" }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := testConfig()
			tc.setup(c)
			if tc.ok {
				require.NoError(t, c.Validate())
			} else {
				require.Error(t, c.Validate())
			}
		})
	}
}

func TestNewLink(t *testing.T) {
	c := testConfig()
	c.Ports = []string{"tcp://localhost:5760"}
	c.StrictDecoding = true
	c.HandshakeWait = time.Second
	link, err := c.NewLink()
	require.NoError(t, err)
	require.Equal(t, c.Ports, link.Candidates)
	require.NotNil(t, link.Discoverer)
	require.True(t, link.StrictDecoding)
	require.Equal(t, time.Second, link.HandshakeWait)
}

func TestNewQueue(t *testing.T) {
	c := testConfig()
	c.MQTTBrokerURL = "mqtt://localhost:1883/robo/"
	q, err := c.NewQueue("imud")
	require.NoError(t, err)
	require.Equal(t, "robo/", q.TopicPrefix)

	c.MQTTBrokerURL = ""
	_, err = c.NewQueue("imud")
	require.Error(t, err)
}

func TestMachineID(t *testing.T) {
	require.NotEmpty(t, MachineID())
}
