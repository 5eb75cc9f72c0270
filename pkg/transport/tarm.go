package transport

import (
	"fmt"
	"time"

	tarm "github.com/tarm/serial"

	"github.com/robotalks/robotserial/pkg/imu"
)

func openTarm(name string, baud int, timeout time.Duration) (imu.Transport, error) {
	port, err := tarm.OpenPort(&tarm.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: timeout,
		Size:        8,
		Parity:      tarm.ParityNone,
		StopBits:    tarm.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return eofIsTimeout{port}, nil
}
