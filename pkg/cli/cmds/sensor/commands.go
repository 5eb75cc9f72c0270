package sensor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/robotserial/pkg/cli/sh"
	"github.com/robotalks/robotserial/pkg/imu"
)

// ReadTimeout bounds each gated read.
var ReadTimeout = time.Second

var (
	// LastCmd prints the last committed reading.
	LastCmd = ishell.Cmd{
		Name:    "last",
		Aliases: []string{"ls"},
		Help:    "SENSOR",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ch, err := sh.SensorChannel(c)
			if err != nil {
				c.Err(err)
				return
			}
			r, ok := ch.Last()
			if !ok {
				c.Println("no reading")
				return
			}
			c.Println(sh.ShellFrom(c).FormatReading(r))
		}),
	}

	// ReadCmd requests readings one by one through the gate.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "SENSOR [COUNT]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ch, err := sh.SensorChannel(c)
			if err != nil {
				c.Err(err)
				return
			}
			count := 1
			if len(c.Args) > 1 {
				if count, err = strconv.Atoi(c.Args[1]); err != nil || count < 1 {
					c.Err(fmt.Errorf("Invalid COUNT: %s", c.Args[1]))
					return
				}
			}
			if !ch.Gated() {
				ch.InstallGate()
				defer ch.RemoveGate()
			}
			s := sh.ShellFrom(c)
			for i := 0; i < count; i++ {
				r, err := ch.AwaitOneTimeout(ReadTimeout)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(s.FormatReading(r))
			}
		}),
	}

	// WatchCmd prints every reading of a free-running channel.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "SENSOR [SECONDS]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ch, err := sh.SensorChannel(c)
			if err != nil {
				c.Err(err)
				return
			}
			if ch.Gated() {
				c.Err(fmt.Errorf("%s is gated, run: gate %s off", ch.Sensor(), ch.Sensor()))
				return
			}
			secs := 5.0
			if len(c.Args) > 1 {
				if secs, err = strconv.ParseFloat(c.Args[1], 64); err != nil {
					c.Err(fmt.Errorf("Invalid SECONDS: %v", err))
					return
				}
			}
			s := sh.ShellFrom(c)
			ch.SetHandler(imu.HandleReadingFunc(func(r imu.Reading) {
				c.Println(s.FormatReading(r))
			}))
			time.Sleep(time.Duration(secs * float64(time.Second)))
			ch.SetHandler(nil)
		}),
	}

	// GateCmd switches a channel between gated and free-running.
	GateCmd = ishell.Cmd{
		Name:    "gate",
		Aliases: []string{"g"},
		Help:    "SENSOR on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ch, err := sh.SensorChannel(c)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) < 2 {
				c.Println(ch.Gated())
				return
			}
			switch c.Args[1] {
			case "on":
				ch.InstallGate()
			case "off":
				ch.RemoveGate()
			default:
				c.Err(fmt.Errorf("on or off expected"))
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&LastCmd,
		&ReadCmd,
		&WatchCmd,
		&GateCmd,
	)
}
