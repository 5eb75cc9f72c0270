// Package env sets up Links and sinks from flags, environment variables
// and an optional YAML config file.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/robotserial/pkg/imu"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
	"github.com/robotalks/robotserial/pkg/mqtt"
	"github.com/robotalks/robotserial/pkg/transport"
)

// DefaultHandshakeTimeout bounds Link.Start in interactive tools.
const DefaultHandshakeTimeout = 5 * time.Second

// Config provides common options to setup a Link and its sinks.
type Config struct {
	Ports            []string         `yaml:"ports"`
	Transport        transport.Config `yaml:"transport"`
	HandshakeTimeout time.Duration    `yaml:"handshake_timeout"`
	HandshakeWait    time.Duration    `yaml:"handshake_wait"`
	StrictDecoding   bool             `yaml:"strict"`

	// MQTTBrokerURL specifies the MQTT broker readings are published to.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string        `yaml:"mqtt"`
	WebsocketAddr string        `yaml:"websocket"`
	Encoding      msgs.Encoding `yaml:"encoding"`
	DeviceID      string        `yaml:"id"`
}

var (
	defaultConfig = Config{
		Transport:        transport.DefaultConfig(),
		HandshakeTimeout: DefaultHandshakeTimeout,
		HandshakeWait:    imu.DefaultHandshakeWait,
		MQTTBrokerURL:    "mqtt://localhost:1883/robo/",
		Encoding:         msgs.EncodingJSON,
	}

	configFile string
)

func init() {
	defaultConfig.DeviceID = MachineID()
	if err := defaultConfig.loadEnv(os.Getenv); err != nil {
		log.Fatalln(err)
	}
}

func (c *Config) loadEnv(getenv func(string) string) error {
	if val := getenv("ROBOSERIAL_PORTS"); val != "" {
		c.Ports = splitList(val)
	}
	if val := getenv("ROBOSERIAL_DRIVER"); val != "" {
		c.Transport.Driver = transport.Driver(val)
	}
	if val := getenv("ROBOSERIAL_BAUD"); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ROBOSERIAL_BAUD: %w", err)
		}
		c.Transport.BaudRate = baud
	}
	if val := getenv("ROBOSERIAL_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("ROBOSERIAL_WS_ADDR"); val != "" {
		c.WebsocketAddr = val
	}
	if val := getenv("ROBOSERIAL_ENCODING"); val != "" {
		c.Encoding = msgs.Encoding(val)
	}
	if val := getenv("ROBOSERIAL_ID"); val != "" {
		c.DeviceID = val
	}
	return nil
}

func splitList(val string) []string {
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

type listValue struct {
	items *[]string
}

func (v listValue) String() string {
	if v.items == nil {
		return ""
	}
	return strings.Join(*v.items, ",")
}

func (v listValue) Set(val string) error {
	*v.items = splitList(val)
	return nil
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	defaultConfig.SetupFlagSet(flag.CommandLine)
	flag.StringVar(&configFile, "config", configFile, "YAML config file, flags set explicitly take precedence.")
}

// SetupFlagSet registers the options of c in fs.
func (c *Config) SetupFlagSet(fs *flag.FlagSet) {
	fs.Var(listValue{&c.Ports}, "ports", "Comma separated candidate ports, tcp://host:port for network devices. Empty to discover.")
	fs.StringVar((*string)(&c.Transport.Driver), "driver", string(c.Transport.Driver), "Serial driver: bugst, tarm, jacobsa, termios.")
	fs.IntVar(&c.Transport.BaudRate, "baud", c.Transport.BaudRate, "Serial baud rate.")
	fs.DurationVar(&c.Transport.ReadTimeout, "read-timeout", c.Transport.ReadTimeout, "Read timeout of a single byte.")
	fs.DurationVar(&c.HandshakeTimeout, "handshake-timeout", c.HandshakeTimeout, "Time to wait for the first session.")
	fs.DurationVar(&c.HandshakeWait, "handshake-wait", c.HandshakeWait, "Time a port may stay silent before the handshake.")
	fs.BoolVar(&c.StrictDecoding, "strict", c.StrictDecoding, "Reject NaN and infinite values.")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable.")
	fs.StringVar(&c.WebsocketAddr, "ws", c.WebsocketAddr, "Websocket listen address, empty to disable.")
	fs.StringVar((*string)(&c.Encoding), "encoding", string(c.Encoding), "Reading encoding: json, proto.")
	fs.StringVar(&c.DeviceID, "id", c.DeviceID, "Device ID used in topics.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Ports = append([]string(nil), defaultConfig.Ports...)
	return &conf
}

// Parse parses the command line and merges the -config file into the
// default config.
func Parse() {
	flag.Parse()
	if configFile == "" {
		return
	}
	if err := defaultConfig.LoadFile(flag.CommandLine, configFile); err != nil {
		log.Fatalln(err)
	}
}

// LoadFile merges a YAML file into c. Flags set explicitly in fs keep
// their values.
func (c *Config) LoadFile(fs *flag.FlagSet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	set := make(map[string]string)
	if fs != nil {
		fs.Visit(func(f *flag.Flag) {
			set[f.Name] = f.Value.String()
		})
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for name, val := range set {
		if err := fs.Set(name, val); err != nil {
			return fmt.Errorf("-%s: %w", name, err)
		}
	}
	return c.Validate()
}

// Validate checks the enumerated options.
func (c *Config) Validate() error {
	driver, err := transport.ParseDriver(string(c.Transport.Driver))
	if err != nil {
		return err
	}
	c.Transport.Driver = driver
	enc, err := msgs.ParseEncoding(string(c.Encoding))
	if err != nil {
		return err
	}
	c.Encoding = enc
	if c.DeviceID == "" {
		return fmt.Errorf("device id must be specified")
	}
	if strings.ContainsAny(c.DeviceID, "/+#") {
		return fmt.Errorf("invalid device id %q", c.DeviceID)
	}
	return nil
}

// NewLink creates a Link using current config. With no ports the Link
// discovers serial ports.
func (c *Config) NewLink() (*imu.Link, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	link := imu.NewLink(c.Transport, c.Ports...)
	link.Discoverer = c.Transport
	link.StrictDecoding = c.StrictDecoding
	link.HandshakeWait = c.HandshakeWait
	return link, nil
}

// MustNewLink creates a Link and fails on error.
func (c *Config) MustNewLink() *imu.Link {
	link, err := c.NewLink()
	if err != nil {
		log.Fatalln(err)
	}
	return link
}

// NewQueue creates an unconnected MQTT Queue. The broker marks the device
// offline when the connection is lost.
func (c *Config) NewQueue(clientPrefix string) (*mqtt.Queue, error) {
	if c.MQTTBrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL must be specified")
	}
	opts, prefix, err := mqtt.ClientOptionsFromURL(c.MQTTBrokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT broker URL: %w", err)
	}
	if opts.ClientID == "" {
		opts.SetClientID(clientPrefix + "-" + c.DeviceID)
	}
	opts.SetWill(prefix+c.DeviceID+"/"+mqtt.StateTopic, mqtt.StateOffline, 1, true)
	return mqtt.NewQueue(opts, prefix), nil
}

// MustNewQueue creates a Queue and fails on error.
func (c *Config) MustNewQueue(clientPrefix string) *mqtt.Queue {
	q, err := c.NewQueue(clientPrefix)
	if err != nil {
		log.Fatalln(err)
	}
	return q
}

// NewPublisher creates a Publisher of this device on q.
func (c *Config) NewPublisher(q *mqtt.Queue) *mqtt.Publisher {
	return mqtt.NewPublisher(q, c.DeviceID, c.Encoding)
}
