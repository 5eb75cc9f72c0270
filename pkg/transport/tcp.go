package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/robotalks/robotserial/pkg/imu"
)

// DialTimeout bounds connecting to a networked board.
const DialTimeout = 3 * time.Second

type tcpPort struct {
	net.Conn
	timeout time.Duration
}

func openTCP(addr string, timeout time.Duration) (imu.Transport, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &tcpPort{Conn: conn, timeout: timeout}, nil
}

// Read sets a deadline per call so a quiet board looks like a serial port
// with a read timeout.
func (p *tcpPort) Read(b []byte) (int, error) {
	if err := p.Conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
		return 0, err
	}
	return p.Conn.Read(b)
}
