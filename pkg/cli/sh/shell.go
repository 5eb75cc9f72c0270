package sh

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/robotserial/pkg/env"
	"github.com/robotalks/robotserial/pkg/imu"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Link   *imu.Link
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&StatusCmd,
	}

	errNotConnected = errors.New("not connected")
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Machine returns the machine of the active session.
func (s *Shell) Machine() (*imu.Machine, error) {
	if s.Link == nil {
		return nil, errNotConnected
	}
	m := s.Link.Machine()
	if m == nil {
		return nil, fmt.Errorf("no active session, link is %s", s.Link.State())
	}
	return m, nil
}

// MustBeConnected wraps command func requires an active session.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if _, err := ShellFrom(c).Machine(); err != nil {
			c.Err(err)
			return
		}
		fn(c)
	}
}

// SensorChannel resolves the channel named by the first argument.
func SensorChannel(c *ishell.Context) (*imu.Channel, error) {
	if len(c.Args) < 1 {
		return nil, fmt.Errorf("SENSOR required")
	}
	sensor, err := imu.ParseSensor(c.Args[0])
	if err != nil {
		return nil, err
	}
	m, err := ShellFrom(c).Machine()
	if err != nil {
		return nil, err
	}
	return m.Channel(sensor), nil
}

// FormatReading prints a reading into friendly string for display.
func (s *Shell) FormatReading(r imu.Reading) string {
	if s.OutputJSON {
		out, err := msgs.EncodingJSON.Encode(r, s.Config.DeviceID)
		if err != nil {
			return err.Error()
		}
		return string(out)
	}
	return fmt.Sprintf("%s #%d %8.3f %8.3f %8.3f",
		r.Sensor, r.Seq, r.Values[0], r.Values[1], r.Values[2])
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect starts a Link on ports, or discovered ports if none, and waits
// for the first session.
func (s *Shell) Connect(ports ...string) error {
	conf := *s.Config
	if len(ports) > 0 {
		conf.Ports = ports
	}
	link, err := conf.NewLink()
	if err != nil {
		return err
	}
	link.Notifier = imu.StateChangedFunc(func(_ context.Context, state imu.LinkState, err error) {
		if err != nil && s.Interactive {
			s.Shell.Printf("link %s: %v\n", state, err)
		}
		if state == imu.LinkActive {
			s.Shell.SetPrompt(fmt.Sprintf("%s > ", link.Port()))
		}
	})
	s.Disconnect()
	if err := link.Start(conf.HandshakeTimeout); err != nil {
		link.Stop()
		return err
	}
	s.Link = link
	return nil
}

// Disconnect stops current link.
func (s *Shell) Disconnect() {
	if s.Link != nil {
		s.Link.Stop()
		s.Link = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Disconnect()
	if s.AutoConnect {
		if s.Interactive {
			s.Shell.Printf("Connecting %v ...\n", s.Config.Ports)
		}
		if err := s.Connect(); err != nil {
			log.Fatalf("connect failed: %v", err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PortsCmd lists serial ports which can be opened.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			names, err := ShellFrom(c).Config.Transport.Discover()
			if err != nil {
				c.Err(err)
				return
			}
			if len(names) == 0 {
				c.Println("No ports found")
				return
			}
			for _, name := range names {
				c.Println(name)
			}
		},
	}

	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT...]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if err := s.Connect(c.Args...); err != nil {
				c.Err(err)
				return
			}
			c.Printf("connected %s\n", s.Link.Port())
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// StatusCmd prints the link and channel states.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if s.Link == nil {
				c.Println("link: none")
				return
			}
			c.Printf("link: %s %s\n", s.Link.State(), s.Link.Port())
			m := s.Link.Machine()
			if m == nil {
				return
			}
			c.Printf("state: %s\n", m.State())
			for _, sensor := range imu.Sensors {
				ch := m.Channel(sensor)
				mode := "free"
				if ch.Gated() {
					mode = "gated"
				}
				r, ok := ch.Last()
				if !ok {
					c.Printf("%-13s %-5s -\n", sensor, mode)
					continue
				}
				c.Printf("%-13s %-5s #%d\n", sensor, mode, r.Seq)
			}
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	env.Parse()
	conf := env.NewConfig()
	New(conf).WithAutoConnect(len(conf.Ports) > 0).Run(flag.Args()...)
}
