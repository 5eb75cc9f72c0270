package transport

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/robotalks/robotserial/pkg/imu"
)

// termiosPort reads a tty in raw mode with VMIN=0, so a read returns no
// data once VTIME expires.
type termiosPort struct {
	fd        int
	closeOnce sync.Once
}

func openTermios(name string, baud int, timeout time.Duration) (imu.Transport, error) {
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err = setRaw(fd, baud, timeout); err == nil {
		err = unix.SetNonblock(fd, false)
	}
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}
	return &termiosPort{fd: fd}, nil
}

func setRaw(fd, baud int, timeout time.Duration) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | baudToUnix(baud)

	vtime := (timeout + 100*time.Millisecond - 1) / (100 * time.Millisecond)
	if vtime < 1 {
		vtime = 1
	} else if vtime > 255 {
		vtime = 255
	}
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = uint8(vtime)
	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}

func (p *termiosPort) Read(b []byte) (int, error) {
	n, err := unix.Read(p.fd, b)
	if err == unix.EINTR || err == unix.EAGAIN {
		return 0, nil
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

func (p *termiosPort) Write(b []byte) (int, error) {
	n, err := unix.Write(p.fd, b)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (p *termiosPort) Close() (err error) {
	p.closeOnce.Do(func() {
		err = unix.Close(p.fd)
	})
	return
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	case 460800:
		return unix.B460800
	case 921600:
		return unix.B921600
	default:
		return unix.B115200
	}
}
