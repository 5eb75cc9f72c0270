package imu

import (
	"fmt"
	"strings"
	"time"
)

// Sensor identifies one of the inertial streams.
type Sensor int

// Sensors on the board.
const (
	Accelerometer Sensor = iota
	Gyroscope
	Magnetometer

	numSensors
)

// Axes is the number of floats in each reading.
const Axes = 3

// Sensors lists all sensors in frame order.
var Sensors = []Sensor{Accelerometer, Gyroscope, Magnetometer}

var sensorNames = [numSensors]string{"accelerometer", "gyroscope", "magnetometer"}

// String implements fmt.Stringer.
func (s Sensor) String() string {
	if s >= 0 && s < numSensors {
		return sensorNames[s]
	}
	return fmt.Sprintf("sensor(%d)", int(s))
}

// Frame returns the frame marker byte of the sensor.
func (s Sensor) Frame() byte {
	switch s {
	case Accelerometer:
		return FrameAccel
	case Gyroscope:
		return FrameGyro
	case Magnetometer:
		return FrameMag
	}
	return 0
}

// ParseSensor parses a sensor name or one of its short forms.
func ParseSensor(name string) (Sensor, error) {
	switch strings.ToLower(name) {
	case "a", "accel", "acc", "accelerometer":
		return Accelerometer, nil
	case "g", "gyro", "gyroscope":
		return Gyroscope, nil
	case "m", "mag", "magnetometer":
		return Magnetometer, nil
	}
	return 0, fmt.Errorf("unknown sensor %q", name)
}

// Reading is a committed set of values from one sensor.
type Reading struct {
	Sensor Sensor
	// Seq counts readings of the sensor within a session, starting at 1.
	Seq    uint64
	Time   time.Time
	Values []float32
}

// Clone returns a copy not sharing Values.
func (r Reading) Clone() Reading {
	r.Values = append([]float32(nil), r.Values...)
	return r
}

// String implements fmt.Stringer.
func (r Reading) String() string {
	return fmt.Sprintf("%s#%d %v", r.Sensor, r.Seq, r.Values)
}
