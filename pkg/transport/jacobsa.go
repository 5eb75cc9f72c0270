package transport

import (
	"fmt"
	"time"

	jacobsa "github.com/jacobsa/go-serial/serial"

	"github.com/robotalks/robotserial/pkg/imu"
)

// interCharTimeout converts to the 100ms steps termios supports.
func interCharTimeout(timeout time.Duration) uint {
	steps := (timeout + 100*time.Millisecond - 1) / (100 * time.Millisecond)
	if steps < 1 {
		steps = 1
	} else if steps > 255 {
		steps = 255
	}
	return uint(steps) * 100
}

func openJacobsa(name string, baud int, timeout time.Duration) (imu.Transport, error) {
	port, err := jacobsa.Open(jacobsa.OpenOptions{
		PortName:              name,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            jacobsa.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: interCharTimeout(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return eofIsTimeout{port}, nil
}
