package sim

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/robotalks/robotserial/pkg/imu"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
)

// Playback streams recorded readings as a board would send them.
type Playback struct {
	// Period between two readings.
	Period time.Duration
	// Loop restarts from the first reading at the end.
	Loop     bool
	Readings []imu.Reading
}

// LoadPlayback reads a recording written by msgs.Recorder.
func LoadPlayback(r io.Reader, enc msgs.Encoding) (*Playback, error) {
	rp := msgs.NewReplayer(r, enc)
	p := &Playback{Period: DefaultPeriod}
	for {
		m, err := rp.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		reading, err := m.ToReading()
		if err != nil {
			return nil, err
		}
		p.Readings = append(p.Readings, reading)
	}
	if len(p.Readings) == 0 {
		return nil, errors.New("empty recording")
	}
	return p, nil
}

// Copy returns a Playback sharing the readings, for one connection.
func (p *Playback) Copy() *Playback {
	c := *p
	return &c
}

// Run writes the handshake and then one reading every Period. Without
// Loop it returns io.EOF after the last reading.
func (p *Playback) Run(ctx context.Context, w io.Writer) error {
	period := p.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(imu.AppendHandshake(nil)); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	var buf []byte
	for n := 0; ; n++ {
		if n == len(p.Readings) {
			if !p.Loop {
				return io.EOF
			}
			n = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		r := p.Readings[n]
		buf = append(buf[:0], imu.FrameInertial)
		buf = imu.AppendFrame(buf, r.Sensor, r.Values...)
		buf = append(buf, imu.FrameNewline)
		if _, err := bw.Write(buf); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
}
