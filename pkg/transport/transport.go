// Package transport opens the byte streams a Link reads from: serial ports
// through one of the supported drivers, or TCP for networked boards and the
// simulator.
package transport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robotalks/robotserial/pkg/imu"
)

// Driver selects the serial port implementation.
type Driver string

// Drivers
const (
	DriverBugst   Driver = "bugst"
	DriverTarm    Driver = "tarm"
	DriverJacobsa Driver = "jacobsa"
	DriverTermios Driver = "termios"
)

// Defaults
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
	TCPPrefix          = "tcp://"
)

// Config opens transports. It implements imu.Opener and imu.Discoverer.
type Config struct {
	Driver      Driver        `yaml:"driver"`
	BaudRate    int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() Config {
	return Config{
		Driver:      DriverBugst,
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
}

func (c Config) baudRate() int {
	if c.BaudRate <= 0 {
		return DefaultBaudRate
	}
	return c.BaudRate
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout <= 0 {
		return DefaultReadTimeout
	}
	return c.ReadTimeout
}

// ParseDriver validates a driver name, empty means the default.
func ParseDriver(name string) (Driver, error) {
	switch Driver(name) {
	case "":
		return DriverBugst, nil
	case DriverBugst, DriverTarm, DriverJacobsa, DriverTermios:
		return Driver(name), nil
	}
	return "", fmt.Errorf("unknown serial driver %q", name)
}

// Open implements imu.Opener. Names starting with tcp:// are dialed,
// everything else is a serial port.
func (c Config) Open(name string) (imu.Transport, error) {
	if strings.HasPrefix(name, TCPPrefix) {
		return openTCP(strings.TrimPrefix(name, TCPPrefix), c.readTimeout())
	}
	switch c.Driver {
	case "", DriverBugst:
		return openBugst(name, c.baudRate(), c.readTimeout())
	case DriverTarm:
		return openTarm(name, c.baudRate(), c.readTimeout())
	case DriverJacobsa:
		return openJacobsa(name, c.baudRate(), c.readTimeout())
	case DriverTermios:
		return openTermios(name, c.baudRate(), c.readTimeout())
	}
	return nil, fmt.Errorf("unknown serial driver %q", string(c.Driver))
}

// eofIsTimeout adapts ports which report a read timeout as io.EOF, like
// os.File on a tty with VMIN=0.
type eofIsTimeout struct {
	io.ReadCloser
}

func (r eofIsTimeout) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}
