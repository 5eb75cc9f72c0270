package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/robotalks/robotserial/pkg/imu"
)

func openBugst(name string, baud int, timeout time.Duration) (imu.Transport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return port, nil
}

func listBugst() ([]string, error) {
	return serial.GetPortsList()
}
