//go:build !linux

package transport

import (
	"fmt"
	"runtime"
	"time"

	"github.com/robotalks/robotserial/pkg/imu"
)

func openTermios(name string, baud int, timeout time.Duration) (imu.Transport, error) {
	return nil, fmt.Errorf("%s driver is not supported on %s", DriverTermios, runtime.GOOS)
}
